package swmm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long a killed engine may hold its output pipes open.
const waitDelay = 2 * time.Second

// ErrEngineFailed wraps every failure of the external engine process.
var ErrEngineFailed = errors.New("swmm engine failed")

// Job names the files of one engine run.
type Job struct {
	Input  string
	Report string
	Output string
}

// Engine runs a simulation to completion.
type Engine interface {
	Run(ctx context.Context, job Job) error
}

// CLIEngine runs the engine's command-line binary: `runswmm <inp> <rpt> <out>`.
type CLIEngine struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCLIEngine creates an engine backed by a binary on PATH or at an absolute path.
// A zero timeout leaves the run bounded only by the caller's context.
func NewCLIEngine(binary string, timeout time.Duration, logger *slog.Logger) *CLIEngine {
	return &CLIEngine{binary: binary, timeout: timeout, logger: logger}
}

// Available reports whether the engine binary can be resolved.
func (e *CLIEngine) Available() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("engine binary %q: %w", e.binary, err)
	}
	return nil
}

// Run executes the engine and returns its combined output in the error on failure.
func (e *CLIEngine) Run(ctx context.Context, job Job) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, job.Input, job.Report, job.Output)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w after %s", ErrEngineFailed, ctx.Err(), elapsed.Round(time.Millisecond))
		}
		return fmt.Errorf("%w: %v: %s", ErrEngineFailed, err, lastLines(out.String(), 5))
	}

	e.logger.Debug("engine run complete",
		"input", job.Input,
		"duration", elapsed,
	)
	return nil
}

// lastLines trims process output to its tail so errors stay readable.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
