package stat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/ctxlog"
	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Init builds the runtime object graph from the configuration. Classifiers
// are processed in configuration order. An unresolved classifier, backend, or
// explicitly named cache/tokenizer is a *FatalError; a single statfile whose
// backend init fails is logged and skipped without affecting its siblings or
// its classifier.
func Init(ctx context.Context, cfg *config.Model, reg *registry.Registry) (*Context, error) {
	sc := &Context{
		id:  uuid.New(),
		cfg: cfg,
		reg: reg,
	}
	logger := ctxlog.FromContext(ctx).With("stat_ctx", sc.id.String())
	logger.Debug("Building classification pipeline.", "classifier_count", len(cfg.Classifiers))

	for _, clf := range cfg.Classifiers {
		bkName := clf.Backend
		if bkName == "" {
			bkName = registry.DefaultBackend
		}
		bk, ok := reg.Backend(bkName)
		if !ok {
			return nil, &FatalError{Role: "backend", Name: bkName}
		}

		// The first classifier's tokenizer is frozen for the whole context.
		// Later classifiers cannot select a different one; a single tokenizer
		// per process is a documented limitation.
		if sc.tokenizer == nil {
			tkName := clf.Tokenizer
			if tkName == "" {
				tkName = registry.DefaultTokenizer
			}
			tk, ok := reg.Tokenizer(tkName)
			if !ok {
				return nil, &FatalError{Role: "tokenizer", Name: tkName}
			}
			tkcf, err := tk.Config(ctx, clf.Options)
			if err != nil {
				return nil, fmt.Errorf("failed to configure tokenizer %q: %w", tkName, err)
			}
			sc.tokenizer = tk
			sc.tokenizerName = tkName
			sc.tkcf = tkcf
			logger.Debug("Tokenizer frozen for this context.", "tokenizer", tkName)
		}

		subrs, ok := reg.Classifier(clf.Name)
		if !ok {
			return nil, &FatalError{Role: "classifier", Name: clf.Name}
		}

		cl := &Classifier{
			Cfg:         clf,
			Subrs:       subrs,
			Backend:     bk,
			BackendName: bkName,
		}

		state, err := subrs.Init(ctx, clf)
		if err != nil {
			return nil, fmt.Errorf("failed to init classifier %q: %w", clf.Name, err)
		}
		cl.State = state

		cacheObj := config.AttrOrNil(clf.Options, "cache")
		cacheName := cacheNameFrom(cacheObj)
		if cacheName == "" {
			cacheName = registry.DefaultCache
		}
		ca, ok := reg.Cache(cacheName)
		if !ok {
			return nil, &FatalError{Role: "cache", Name: cacheName}
		}
		cacheState, err := ca.Init(ctx, cacheObj)
		if err != nil {
			return nil, fmt.Errorf("failed to init cache for classifier %q: %w", clf.Name, err)
		}
		cl.Cache = ca
		cl.CacheName = cacheName
		cl.CacheState = cacheState

		for _, stf := range clf.Statfiles {
			bkcf, err := bk.Init(ctx, clf, stf)
			if err != nil {
				logger.Error("Cannot init backend for statfile, skipping it.",
					"backend", bkName, "symbol", stf.Symbol, "error", err)
				continue
			}

			st := &Statfile{
				ID:      len(sc.statfiles),
				Cfg:     stf,
				Backend: bk,
				State:   bkcf,
			}
			sc.statfiles = append(sc.statfiles, st)
			cl.StatfileIDs = append(cl.StatfileIDs, st.ID)
			logger.Debug("Added backend for symbol.",
				"backend", bkName, "symbol", stf.Symbol, "id", st.ID)
		}

		sc.classifiers = append(sc.classifiers, cl)
	}

	logger.Debug("Classification pipeline built.",
		"classifiers", len(sc.classifiers), "statfiles", len(sc.statfiles))
	return sc, nil
}

// cacheNameFrom extracts the "name" string from a classifier's `cache`
// options object. Absence at any level yields "", which resolves to the
// default cache name.
func cacheNameFrom(cacheObj cty.Value) string {
	name := config.AttrOrNil(cacheObj, "name")
	if name == cty.NilVal || name.IsNull() || name.Type() != cty.String {
		return ""
	}
	return name.AsString()
}
