package stat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vk/statcore/internal/ctxlog"
	"github.com/vk/statcore/internal/registry"
)

// Tokenize runs the frozen tokenizer over the given content. A context built
// from a configuration with no classifiers has no frozen tokenizer and
// cannot tokenize.
func (sc *Context) Tokenize(ctx context.Context, text []byte) ([]registry.Token, error) {
	if sc.tokenizer == nil {
		return nil, errors.New("no tokenizer configured: the pipeline has no classifiers")
	}
	tokens, err := sc.tokenizer.Tokenize(ctx, sc.tkcf, text)
	if err != nil {
		return nil, fmt.Errorf("tokenizer %q failed: %w", sc.tokenizerName, err)
	}
	return tokens, nil
}

// Classify scores the given content with every configured classifier, in
// configuration order. Safe for concurrent use once Init has returned.
func (sc *Context) Classify(ctx context.Context, text []byte) ([]*registry.Result, error) {
	tokens, err := sc.Tokenize(ctx, text)
	if err != nil {
		return nil, err
	}

	results := make([]*registry.Result, 0, len(sc.classifiers))
	for _, cl := range sc.classifiers {
		runs, err := sc.buildRuns(ctx, cl, tokens)
		if err != nil {
			return nil, err
		}
		res, clErr := cl.Subrs.Classify(ctx, cl.State, tokens, runs)
		// Every runtime built for this operation is finalized, whether the
		// classifier succeeded or not.
		finErr := finalizeProcess(ctx, cl, runs)
		if clErr != nil {
			return nil, fmt.Errorf("classifier %q failed: %w", cl.Cfg.Name, clErr)
		}
		if finErr != nil {
			return nil, finErr
		}
		results = append(results, res)
	}
	return results, nil
}

// Learn trains every configured classifier on the given content as the given
// class. A message already recorded by a classifier's learn cache is skipped
// for that classifier.
func (sc *Context) Learn(ctx context.Context, text []byte, spam bool) error {
	logger := ctxlog.FromContext(ctx)

	tokens, err := sc.Tokenize(ctx, text)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(text)
	digest := hex.EncodeToString(sum[:])

	for _, cl := range sc.classifiers {
		seen, err := cl.Cache.Process(ctx, cl.CacheState, digest, spam)
		if err != nil {
			return fmt.Errorf("cache %q failed: %w", cl.CacheName, err)
		}
		if seen {
			logger.Debug("Message already learned, skipping.",
				"classifier", cl.Cfg.Name, "digest", digest, "spam", spam)
			continue
		}

		runs, err := sc.buildRuns(ctx, cl, nil)
		if err != nil {
			return err
		}
		learnErr := cl.Subrs.LearnSpam(ctx, cl.State, tokens, spam, runs)
		finErr := finalizeLearn(ctx, cl, runs)
		if learnErr != nil {
			return fmt.Errorf("classifier %q failed to learn: %w", cl.Cfg.Name, learnErr)
		}
		if finErr != nil {
			return finErr
		}
	}
	return nil
}

// buildRuns prepares the per-statfile views handed to a classifier. With a
// non-nil token slice the backend also fills occurrence counts (classify
// path); with nil tokens the views carry no counts (learn path). When a
// statfile fails partway, the runtimes already built are finalized before
// the error is returned.
func (sc *Context) buildRuns(ctx context.Context, cl *Classifier, tokens []registry.Token) ([]*registry.StatfileRun, error) {
	classify := tokens != nil
	runs := make([]*registry.StatfileRun, 0, len(cl.StatfileIDs))
	fail := func(err error) ([]*registry.StatfileRun, error) {
		if classify {
			_ = finalizeProcess(ctx, cl, runs)
		} else {
			_ = finalizeLearn(ctx, cl, runs)
		}
		return nil, err
	}

	for _, id := range cl.StatfileIDs {
		st := sc.StatfileByID(id)
		rt, err := st.Backend.Runtime(ctx, st.State)
		if err != nil {
			return fail(fmt.Errorf("backend %q runtime for %q: %w", cl.BackendName, st.Cfg.Symbol, err))
		}
		run := &registry.StatfileRun{
			Symbol:      st.Cfg.Symbol,
			Spam:        st.Cfg.Spam,
			Backend:     st.Backend,
			Runtime:     rt,
			TotalLearns: st.Backend.TotalLearns(ctx, rt),
		}
		runs = append(runs, run)
		if classify {
			counts, err := st.Backend.ProcessTokens(ctx, rt, tokens)
			if err != nil {
				return fail(fmt.Errorf("backend %q process tokens for %q: %w", cl.BackendName, st.Cfg.Symbol, err))
			}
			run.Counts = counts
		}
	}
	return runs, nil
}

// finalizeProcess ends a classify operation on every built runtime,
// collecting failures rather than stopping at the first.
func finalizeProcess(ctx context.Context, cl *Classifier, runs []*registry.StatfileRun) error {
	var errs []error
	for _, run := range runs {
		if err := run.Backend.FinalizeProcess(ctx, run.Runtime); err != nil {
			errs = append(errs, fmt.Errorf("backend %q failed to finalize %q: %w", cl.BackendName, run.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

// finalizeLearn ends a learn operation on every built runtime.
func finalizeLearn(ctx context.Context, cl *Classifier, runs []*registry.StatfileRun) error {
	var errs []error
	for _, run := range runs {
		if err := run.Backend.FinalizeLearn(ctx, run.Runtime); err != nil {
			errs = append(errs, fmt.Errorf("backend %q failed to finalize learn for %q: %w", cl.BackendName, run.Symbol, err))
		}
	}
	return errors.Join(errs...)
}
