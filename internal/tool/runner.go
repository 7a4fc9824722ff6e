package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"halftone-compare/internal/logger"
)

const stderrTail = 8 << 10

// Result describes a finished invocation, successful or not.
type Result struct {
	Args     []string
	ExitCode int
	Duration time.Duration
	Stdout   string
	Stderr   string
}

// Runner executes invocations of the image tool.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// ExecRunner runs the tool as a subprocess without a shell.
type ExecRunner struct {
	path    string
	dir     string
	env     []string
	timeout time.Duration
	logger  logger.Logger
}

type Option func(*ExecRunner)

// WithTimeout bounds each invocation. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = d
	}
}

// WithDir sets the working directory of the subprocess.
func WithDir(dir string) Option {
	return func(r *ExecRunner) {
		r.dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *ExecRunner) {
		r.env = append(r.env, env...)
	}
}

func NewExecRunner(path string, log logger.Logger, opts ...Option) *ExecRunner {
	if log == nil {
		log = logger.Nop()
	}
	r := &ExecRunner{path: path, logger: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ExecRunner) Path() string {
	return r.path
}

func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := inv.Args()
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	stdout := newTailBuffer(stderrTail)
	stderr := newTailBuffer(stderrTail)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("ToolRunner", "starting tool", map[string]interface{}{
		"variant": inv.Name,
		"op":      inv.Op.String(),
		"args":    args,
	})

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Args:     args,
		ExitCode: exitCode(cmd),
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return result, &Error{
			Name:     inv.Name,
			Path:     r.path,
			Args:     args,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}

	r.logger.Debug("ToolRunner", "tool finished", map[string]interface{}{
		"variant":     inv.Name,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
