package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/hebbihebb/satcn/internal/config"
	"github.com/hebbihebb/satcn/internal/observability"
	"github.com/hebbihebb/satcn/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Process struct {
		Input       string  `arg:"" help:"Input document (.md or .epub)"`
		Output      string  `short:"o" help:"Output file path (defaults to <input>.corrected.<ext>)"`
		Format      string  `short:"f" help:"Input format override" enum:"markdown,epub," default:""`
		FailFast    bool    `help:"Abort the run on the first stage failure"`
		Model       bool    `help:"Enable the model-backed correction stage"`
		ModelMode   string  `help:"Model integration mode: replace, hybrid or supplement" enum:"replace,hybrid,supplement," default:""`
		Temperature float64 `help:"Model sampling temperature" default:"-1"`
	} `cmd:"" help:"Run the correction pipeline over a document"`

	Stages struct{} `cmd:"" help:"Probe configured stages and report their availability"`

	Runs struct {
		Limit int `short:"n" help:"Number of runs to show" default:"10"`
	} `cmd:"" help:"Show recent pipeline runs from the run log"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct{} `cmd:"" help:"Show version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg)

	level := cfg.Logging.Level
	if CLI.Verbose {
		level = "debug"
	}
	observability.Setup(level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "process <input>":
		if err := runProcess(ctx, cfg); err != nil {
			slog.Error("processing failed", "error", err)
			os.Exit(1)
		}
	case "stages":
		if err := runStages(ctx, cfg); err != nil {
			slog.Error("stage probe failed", "error", err)
			os.Exit(1)
		}
	case "runs":
		if err := runRuns(ctx, cfg, CLI.Runs.Limit); err != nil {
			slog.Error("run log query failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("init failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", CLI.Config)
	case "version":
		fmt.Printf("satcn %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", kctx.Command())
		os.Exit(1)
	}
}

// applyOverrides folds process-command flags into the loaded configuration.
func applyOverrides(cfg *config.Config) {
	if CLI.Process.FailFast {
		cfg.Pipeline.FailurePolicy = "abort"
	}
	if CLI.Process.Model {
		cfg.Model.Enabled = true
	}
	if CLI.Process.ModelMode != "" {
		cfg.Model.Mode = config.NormalizeModelMode(CLI.Process.ModelMode)
	}
	if CLI.Process.Temperature >= 0 {
		cfg.Model.Temperature = CLI.Process.Temperature
	}
}
