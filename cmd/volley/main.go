package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/volleyhq/volley/internal/config"
	"github.com/volleyhq/volley/internal/output"
	"github.com/volleyhq/volley/internal/runner"
	"github.com/volleyhq/volley/internal/threshold"
	"github.com/volleyhq/volley/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

type stderrFailureLogger struct {
	mu sync.Mutex
}

func (l *stderrFailureLogger) LogFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "attempt failed: %v\n", err)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DumpConfig {
		dump, err := cfg.DumpYAML()
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, dump)
		return nil
	}

	// Parse thresholds up front so a typo fails before any load is sent.
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	unit, err := buildWorkUnit(cfg, provider)
	if err != nil {
		return err
	}
	if cfg.LogErrors {
		unit = runner.WithLogging(unit, &stderrFailureLogger{})
	}

	engine, err := runner.NewEngine(runner.Options{
		Total:       cfg.Total,
		Concurrency: cfg.Concurrency,
		Rate:        cfg.Rate,
		Window:      cfg.Window,
		Scheduler:   runner.Scheduler(cfg.Scheduler),
		Pacing:      runner.Pacing(cfg.Pacing),
		Unit:        unit,
	})
	if err != nil {
		return err
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput {
		progress = output.NewProgressReporter(engine.Metrics(), progressInterval, os.Stdout)
		progress.Start()
	}

	summary := engine.Run(ctx)
	if progress != nil {
		progress.Stop()
	}

	report := output.Report{RunID: output.NewRunID(), Summary: summary}
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, report)
	}
	if cfg.Output != "" {
		if err := output.WriteReportFile(cfg.Output, report); err != nil {
			return err
		}
	}

	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(summary)
		failed := 0
		fmt.Fprintln(os.Stdout, "\nThresholds:")
		for _, r := range results {
			fmt.Fprintf(os.Stdout, "  %s\n", r.Message)
			if !r.Pass {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
		}
	}

	if summary.Partial {
		return fmt.Errorf("run interrupted: %d of %d attempts completed", summary.Total, cfg.Total)
	}
	return nil
}

func buildWorkUnit(cfg *config.Config, provider *tracing.Provider) (runner.WorkUnit, error) {
	switch cfg.Protocol {
	case config.ProtocolWebSocket:
		return newWebSocketUnit(cfg, provider)
	case config.ProtocolHTTP, "":
		return newHTTPUnit(cfg, provider)
	default:
		return nil, fmt.Errorf("protocol %q is not supported", cfg.Protocol)
	}
}
