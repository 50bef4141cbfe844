// Package bayes implements the default naive-Bayes classifier algorithm.
// Token occurrence counts from spam- and ham-class statfiles are combined
// into a spam probability via summed log odds.
package bayes

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the classifier with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterClassifier("bayes", &Classifier{})
}

// defaultMinLearns is how many learned messages a classifier needs before it
// starts producing verdicts.
const defaultMinLearns = 2

// Classifier is the naive-Bayes implementation of registry.Classifier.
type Classifier struct{}

// state is the per-classifier algorithm state.
type state struct {
	minLearns uint64
}

// Init reads algorithm options (`options.min_learns`) for one configured
// classifier.
func (c *Classifier) Init(ctx context.Context, cfg *config.ClassifierConfig) (registry.ClassifierState, error) {
	st := &state{minLearns: defaultMinLearns}

	ml := config.AttrOrNil(cfg.Options, "min_learns")
	if ml != cty.NilVal && !ml.IsNull() {
		if ml.Type() != cty.Number {
			return nil, fmt.Errorf("min_learns must be a number, got %s", ml.Type().FriendlyName())
		}
		v, _ := ml.AsBigFloat().Int64()
		if v < 0 {
			return nil, fmt.Errorf("min_learns must not be negative, got %d", v)
		}
		st.minLearns = uint64(v)
	}

	return st, nil
}

// Classify combines per-token counts from the spam and ham statfiles into a
// spam probability. With fewer total learns than min_learns the result is a
// neutral 0.5 with no symbol.
func (c *Classifier) Classify(ctx context.Context, cst registry.ClassifierState, tokens []registry.Token, runs []*registry.StatfileRun) (*registry.Result, error) {
	st, ok := cst.(*state)
	if !ok {
		return nil, fmt.Errorf("unexpected classifier state type %T", cst)
	}

	var spamLearns, hamLearns uint64
	spamSymbol, hamSymbol := "", ""
	for _, run := range runs {
		if run.Spam {
			spamLearns += run.TotalLearns
			if spamSymbol == "" {
				spamSymbol = run.Symbol
			}
		} else {
			hamLearns += run.TotalLearns
			if hamSymbol == "" {
				hamSymbol = run.Symbol
			}
		}
	}

	if spamLearns+hamLearns < st.minLearns {
		return &registry.Result{Spam: false, Score: 0.5}, nil
	}

	var logOdds float64
	for i := range tokens {
		var spamCount, hamCount uint64
		for _, run := range runs {
			if i >= len(run.Counts) {
				continue
			}
			if run.Spam {
				spamCount += run.Counts[i]
			} else {
				hamCount += run.Counts[i]
			}
		}
		// Laplace smoothing keeps unseen tokens from dominating.
		p := (float64(spamCount) + 1) / (float64(spamCount) + float64(hamCount) + 2)
		logOdds += math.Log(p) - math.Log(1-p)
	}

	prob := 1 / (1 + math.Exp(-logOdds))
	res := &registry.Result{
		Spam:  prob > 0.5,
		Score: prob,
	}
	if res.Spam {
		res.Symbol = spamSymbol
	} else {
		res.Symbol = hamSymbol
	}
	return res, nil
}

// LearnSpam trains the statfiles of the matching class and bumps their learn
// counters.
func (c *Classifier) LearnSpam(ctx context.Context, cst registry.ClassifierState, tokens []registry.Token, spam bool, runs []*registry.StatfileRun) error {
	for _, run := range runs {
		if run.Spam != spam {
			continue
		}
		if err := run.Backend.LearnTokens(ctx, run.Runtime, tokens); err != nil {
			return fmt.Errorf("failed to learn tokens into %q: %w", run.Symbol, err)
		}
		run.Backend.IncLearns(ctx, run.Runtime)
	}
	return nil
}
