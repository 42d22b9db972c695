package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hebbihebb/satcn/internal/chain"
	"github.com/hebbihebb/satcn/internal/config"
	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/metrics"
	"github.com/hebbihebb/satcn/internal/pipeline"
	"github.com/hebbihebb/satcn/internal/runlog"

	// Register the format parsers.
	_ "github.com/hebbihebb/satcn/internal/ebook"
	_ "github.com/hebbihebb/satcn/internal/markup"
)

// runProcess executes the full parse, correct, reconstruct cycle for one
// input document. The output file is written only after a successful
// reconstruction; a failed run leaves no partial output behind.
func runProcess(ctx context.Context, cfg *config.Config) error {
	input := CLI.Process.Input

	format := document.Format(CLI.Process.Format)
	if format == "" {
		var err error
		format, err = document.DetectFormat(input)
		if err != nil {
			return err
		}
	}
	parser, err := document.ParserFor(format)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	doc, err := parser.Parse(input, content)
	if err != nil {
		return err
	}
	slog.Info("document parsed", "file", input, "format", string(format), "blocks", len(doc.Blocks))

	stages, err := availableStages(ctx, cfg)
	if err != nil {
		return err
	}

	recorder, shutdownMetrics := setupMetrics(cfg)
	defer shutdownMetrics()

	ec := pipeline.NewExecutionContext(recorder)
	policy := pipeline.PolicySkip
	if config.NormalizeFailurePolicy(cfg.Pipeline.FailurePolicy) == "abort" {
		policy = pipeline.PolicyAbort
	}
	runner := pipeline.NewRunner(stages, policy, ec)

	started := time.Now()
	corrected, records, runErr := runner.Run(ctx, doc)
	persistRun(ctx, cfg, runlog.RunRecord{
		RunID:     ec.RunID,
		Source:    input,
		Format:    string(format),
		Status:    runStatus(runErr),
		StartedAt: started,
		Duration:  time.Since(started),
		Error:     errString(runErr),
	}, records)
	printRecords(records)
	if runErr != nil {
		return runErr
	}

	rendered, err := corrected.Render()
	if err != nil {
		return err
	}
	output := CLI.Process.Output
	if output == "" {
		output = defaultOutputPath(input)
	}
	if err := os.WriteFile(output, rendered, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("document written", "file", output, "bytes", len(rendered))
	return nil
}

// availableStages builds the configured chain and drops optional stages
// whose backends are unreachable. The model stage is treated as required
// when enabled: silently skipping it would change the meaning of the run.
func availableStages(ctx context.Context, cfg *config.Config) ([]pipeline.Stage, error) {
	stages := chain.Build(cfg)
	return pipeline.FilterAvailable(ctx, stages, func(name string) bool {
		return name == "model"
	})
}

// runStages probes every configured stage and prints its availability.
func runStages(ctx context.Context, cfg *config.Config) error {
	for _, st := range chain.Build(cfg) {
		status := "ready"
		if p, ok := st.(pipeline.Prober); ok {
			if err := p.Probe(ctx); err != nil {
				status = fmt.Sprintf("unavailable (%v)", err)
			} else {
				status = "available"
			}
		}
		fmt.Printf("%-10s %s\n", st.Name(), status)
	}
	return nil
}

// runRuns prints the most recent entries from the run log.
func runRuns(ctx context.Context, cfg *config.Config, limit int) error {
	if !cfg.RunLog.Enabled {
		return fmt.Errorf("run log is disabled in configuration")
	}
	store, err := runlog.NewSQLiteStore(cfg.RunLog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s %-10s %8s  %s\n",
			r.StartedAt.Format(time.RFC3339), r.Status, r.Format,
			r.Duration.Round(time.Millisecond), r.Source)
		recs, err := store.Stages(ctx, r.RunID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			line := fmt.Sprintf("    %-10s %-8s %8s", rec.Stage, rec.Status, rec.Duration.Round(time.Millisecond))
			if rec.Status == string(pipeline.StatusOK) {
				line += fmt.Sprintf("  changes=%d", rec.Changes)
			} else if rec.Error != "" {
				line += "  " + rec.Error
			}
			fmt.Println(line)
		}
	}
	return nil
}

func setupMetrics(cfg *config.Config) (metrics.Recorder, func()) {
	if !cfg.Metrics.Enabled {
		return metrics.NoopRecorder{}, func() {}
	}
	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics listener stopped", "error", err)
		}
	}()
	return recorder, func() { _ = srv.Close() }
}

func persistRun(ctx context.Context, cfg *config.Config, run runlog.RunRecord, records []pipeline.ExecutionRecord) {
	var store runlog.Store = runlog.NoopStore{}
	if cfg.RunLog.Enabled {
		s, err := runlog.NewSQLiteStore(cfg.RunLog.Path)
		if err != nil {
			slog.Warn("run log unavailable", "error", err)
			return
		}
		defer s.Close()
		store = s
	}
	if err := store.RecordRun(ctx, run, records); err != nil {
		slog.Warn("failed to persist run record", "error", err)
	}
}

func printRecords(records []pipeline.ExecutionRecord) {
	for _, rec := range records {
		if rec.Status == pipeline.StatusOK {
			changes := 0
			if rec.Changes != nil {
				changes = *rec.Changes
			}
			slog.Info("stage result", "stage", rec.Stage, "status", string(rec.Status),
				"changes", changes, "duration", rec.Duration)
		} else {
			slog.Warn("stage result", "stage", rec.Stage, "status", string(rec.Status),
				"duration", rec.Duration, "error", rec.Err)
		}
	}
}

func runStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}

// defaultOutputPath derives "<name>.corrected.<ext>" next to the input file.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".corrected" + ext
}
