package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"halftone-compare/internal/comparison"
	"halftone-compare/internal/config"
	"halftone-compare/internal/figure"
	"halftone-compare/internal/figure/cvfigure"
	"halftone-compare/internal/logger"
	"halftone-compare/internal/preview"
	"halftone-compare/internal/shutdown"
	"halftone-compare/internal/tool"
)

// Application wires configuration, logging and the comparison runner.
type Application struct {
	cfg      config.Config
	logger   logger.Logger
	shutdown *shutdown.Manager
	runner   *comparison.Runner
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*Application, error) {
	renderer, err := newRenderer(cfg, log)
	if err != nil {
		return nil, err
	}

	toolRunner := tool.NewExecRunner(cfg.ToolPath, log, tool.WithTimeout(cfg.Timeout))
	runner, err := comparison.NewRunner(cfg, toolRunner, renderer, log)
	if err != nil {
		return nil, err
	}

	log.Info("App", "application initialized", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"tool":       cfg.ToolPath,
		"renderer":   cfg.Renderer,
		"parallel":   cfg.Parallel,
	})

	return &Application{
		cfg:      cfg,
		logger:   log,
		shutdown: shutdown.NewManager(ctx, log),
		runner:   runner,
	}, nil
}

func (a *Application) Run(show bool) (*comparison.Report, error) {
	a.shutdown.Listen()
	defer a.shutdown.Stop()

	report, err := a.runner.Run(a.shutdown.Context())
	if err != nil {
		return nil, err
	}

	if show {
		win := preview.New(a.logger)
		a.shutdown.Register(win)
		if err := win.Show(report.Figure); err != nil {
			return report, err
		}
	}
	return report, nil
}

func newRenderer(cfg config.Config, log logger.Logger) (figure.Renderer, error) {
	opts := figureOptions(cfg.Figure)
	switch cfg.Renderer {
	case config.RendererGo:
		return figure.NewGoRenderer(opts, log), nil
	case config.RendererOpenCV:
		return cvfigure.New(opts, log), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
}

func figureOptions(f config.Figure) figure.Options {
	return figure.Options{
		Rows:        f.Rows,
		Cols:        f.Cols,
		Gap:         f.Gap,
		LabelScale:  f.LabelScale,
		JPEGQuality: f.JPEGQuality,
		Background:  f.BackgroundColor(),
		Foreground:  f.ForegroundColor(),
	}
}

func newLogger(opts *options) (logger.Logger, error) {
	level, err := logger.DetermineLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	return logger.New(opts.logFormat, os.Stderr, level)
}

func runCompare(cmd *cobra.Command, opts *options) error {
	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	app, err := NewApplication(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	report, err := app.Run(opts.show)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Figure)
	return nil
}

func printPlan(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	plan, err := comparison.NewPlan(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "images:")
	for i, p := range plan.Paths() {
		fmt.Fprintf(out, "  %-4s %s\n", figure.Label(i), p)
	}
	fmt.Fprintln(out, "commands:")
	for _, inv := range plan.Invocations() {
		fmt.Fprintf(out, "  %s\n", inv.CommandLine(cfg.ToolPath))
	}
	fmt.Fprintf(out, "figure:\n  %s\n", plan.Figure)
	return nil
}
