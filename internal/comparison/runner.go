// Package comparison runs the image tool once per variant and composes the
// original and every result into a single labelled figure.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"halftone-compare/internal/config"
	"halftone-compare/internal/figure"
	"halftone-compare/internal/logger"
	"halftone-compare/internal/timing"
	"halftone-compare/internal/tool"
)

type Runner struct {
	cfg      config.Config
	tool     tool.Runner
	renderer figure.Renderer
	logger   logger.Logger
}

func NewRunner(cfg config.Config, t tool.Runner, r figure.Renderer, log logger.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil || r == nil {
		return nil, errors.New("comparison runner needs a tool runner and a renderer")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{cfg: cfg, tool: t, renderer: r, logger: log}, nil
}

func (r *Runner) Plan() (*Plan, error) {
	return NewPlan(r.cfg)
}

// Run executes the whole comparison. Every stage must finish before the next
// starts; the first failure ends the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	tracker := timing.NewTracker()

	plan, err := r.Plan()
	if err != nil {
		return nil, err
	}

	r.logger.Info("ComparisonRunner", "run started", map[string]interface{}{
		"input":    plan.Input,
		"figure":   plan.Figure,
		"variants": len(plan.Steps),
		"parallel": r.cfg.Parallel,
	})

	stageCtx := tracker.StartTiming(ctx, "prepare")
	err = r.prepare(plan)
	tracker.EndTiming(stageCtx)
	if err != nil {
		return nil, err
	}

	stageCtx = tracker.StartTiming(ctx, "invoke")
	results, err := r.invoke(ctx, plan.Invocations())
	tracker.EndTiming(stageCtx)
	if err != nil {
		r.logger.Error("ComparisonRunner", err, nil)
		return nil, err
	}

	if err := r.verify(plan); err != nil {
		r.logger.Error("ComparisonRunner", err, nil)
		return nil, err
	}

	stageCtx = tracker.StartTiming(ctx, "render")
	size, err := r.renderer.Render(ctx, plan.Paths(), plan.Figure)
	tracker.EndTiming(stageCtx)
	if err != nil {
		r.logger.Error("ComparisonRunner", err, map[string]interface{}{"figure": plan.Figure})
		return nil, fmt.Errorf("failed to render figure: %w", err)
	}

	report := &Report{
		Input:      plan.Input,
		Outputs:    plan.Paths()[1:],
		Figure:     plan.Figure,
		FigureSize: size,
		Stages:     tracker.Stages(),
		Total:      time.Since(start),
	}
	for i, s := range plan.Steps {
		report.Invocations = append(report.Invocations, InvocationReport{
			Name:     s.Variant.Suffix,
			Output:   s.Output,
			Args:     results[i].Args,
			ExitCode: results[i].ExitCode,
			Duration: results[i].Duration,
		})
	}

	r.logger.Info("ComparisonRunner", "run completed", report.fields())
	return report, nil
}

// prepare checks the input, creates output directories and removes stale
// outputs so a failing tool cannot leave an old file behind.
func (r *Runner) prepare(plan *Plan) error {
	info, err := os.Stat(plan.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingInput, plan.Input)
		}
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingInput, plan.Input)
	}

	for _, s := range plan.Steps {
		if err := figure.EnsureDir(s.Output); err != nil {
			return err
		}
		if !r.cfg.CleanStale {
			continue
		}
		err := os.Remove(s.Output)
		switch {
		case err == nil:
			r.logger.Debug("ComparisonRunner", "removed stale output", map[string]interface{}{"path": s.Output})
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to remove stale output: %w", err)
		}
	}
	return nil
}

func (r *Runner) invoke(ctx context.Context, invs []tool.Invocation) ([]*tool.Result, error) {
	if r.cfg.Parallel {
		return r.invokeParallel(ctx, invs)
	}

	results := make([]*tool.Result, len(invs))
	for i, inv := range invs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.tool.Run(ctx, inv)
		if err != nil {
			return nil, err
		}
		results[i] = res
		r.logInvocation(inv, res)
	}
	return results, nil
}

// invokeParallel starts every invocation at once and waits for all of them;
// the first error in variant order wins.
func (r *Runner) invokeParallel(ctx context.Context, invs []tool.Invocation) ([]*tool.Result, error) {
	results := make([]*tool.Result, len(invs))
	errs := make([]error, len(invs))

	var wg sync.WaitGroup
	for i, inv := range invs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = r.tool.Run(ctx, inv)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		r.logInvocation(invs[i], results[i])
	}
	return results, nil
}

func (r *Runner) logInvocation(inv tool.Invocation, res *tool.Result) {
	fields := map[string]interface{}{
		"variant": inv.Name,
		"op":      inv.Op.String(),
		"output":  inv.Output,
	}
	if inv.Op == tool.OpErrorDiffusion {
		fields["kernel"] = inv.Params.Kernel.String()
	}
	if res != nil {
		fields["duration_ms"] = res.Duration.Milliseconds()
	}
	r.logger.Info("ComparisonRunner", "variant generated", fields)
}

func (r *Runner) verify(plan *Plan) error {
	for _, s := range plan.Steps {
		if _, err := os.Stat(s.Output); err != nil {
			return &MissingOutputError{Name: s.Variant.Suffix, Path: s.Output, Err: err}
		}
	}
	return nil
}
