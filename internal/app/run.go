package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vk/statcore/internal/ctxlog"
	"github.com/vk/statcore/internal/stat"
)

// Run executes the main application logic based on the provided configuration:
// build the classification pipeline, perform the requested operation, tear
// the pipeline down.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.healthCheckServer(appConfig.HealthcheckPort)
	}

	a.logger.Info("Registered implementations:",
		"classifiers", a.registry.ClassifierNames(),
		"backends", a.registry.BackendNames())

	sc, err := stat.Setup(ctx, a.config, a.registry)
	if err != nil {
		var fatal *stat.FatalError
		if errors.As(err, &fatal) {
			return fmt.Errorf("invalid pipeline configuration: %w", err)
		}
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.logger.Info("Pipeline built.",
		"classifiers", len(sc.Classifiers()),
		"statfiles", len(sc.Statfiles()),
		"tokenizer", sc.TokenizerName())

	runErr := a.runMode(ctx, appConfig, sc)

	if err := stat.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("pipeline teardown failed: %w", err))
	} else {
		a.logger.Debug("Pipeline torn down.")
	}

	if err := a.closeHealthCheckServer(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	a.logger.Debug("App.Run method finished.")
	return runErr
}

// runMode performs the single operation the process was started for.
func (a *App) runMode(ctx context.Context, appConfig *Config, sc *stat.Context) error {
	switch appConfig.Mode {
	case ModeCheck:
		fmt.Fprintf(a.outW, "configuration ok: %d classifier(s), %d statfile(s)\n",
			len(sc.Classifiers()), len(sc.Statfiles()))
		for _, cl := range sc.Classifiers() {
			for _, id := range cl.StatfileIDs {
				st := sc.StatfileByID(id)
				fmt.Fprintf(a.outW, "  [%d] %s (classifier=%s backend=%s spam=%t)\n",
					st.ID, st.Cfg.Symbol, cl.Cfg.Name, cl.BackendName, st.Cfg.Spam)
			}
		}
		return nil

	case ModeClassify:
		text, err := readInput(appConfig.InputPath)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		results, err := sc.Classify(ctx, text)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		for i, res := range results {
			cl := sc.Classifiers()[i]
			fmt.Fprintf(a.outW, "%s: spam=%t score=%.4f symbol=%s\n",
				cl.Cfg.Name, res.Spam, res.Score, res.Symbol)
		}
		return nil

	case ModeLearnSpam, ModeLearnHam:
		text, err := readInput(appConfig.InputPath)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		spam := appConfig.Mode == ModeLearnSpam
		if err := sc.Learn(ctx, text, spam); err != nil {
			return fmt.Errorf("learning failed: %w", err)
		}
		fmt.Fprintf(a.outW, "learned message as spam=%t\n", spam)
		return nil
	}

	// NewConfig validates the mode, so this is unreachable.
	return fmt.Errorf("unknown mode %q", appConfig.Mode)
}

// readInput loads the message content for the non-check modes. The
// conventional "-" reads standard input.
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
