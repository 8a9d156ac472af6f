package trace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Run is a finished traced command. The trace stays on disk until Close.
type Run struct {
	Path string // Trace file written by the tracer
	Err  error  // Exit status of the tracer and command, nil on success

	dir string
}

// Open opens the trace for reading.
func (r *Run) Open() (*os.File, error) {
	return os.Open(r.Path)
}

// Close removes the trace.
func (r *Run) Close() error {
	return os.RemoveAll(r.dir)
}

// RunTrace runs argv under tracer to completion. The tracer opens the trace
// file itself, so the traced program starts with only its standard streams.
// A command that runs but fails is reported in Run.Err, not as an error.
func RunTrace(ctx context.Context, tracer Tracer, argv []string) (*Run, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command to trace")
	}

	dir, err := os.MkdirTemp("", "fdtrace-")
	if err != nil {
		return nil, fmt.Errorf("trace dir: %w", err)
	}
	run := &Run{Path: filepath.Join(dir, "run.strace"), dir: dir}

	args := tracer.TraceCommand(run.Path, argv)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		run.Close()
		return nil, fmt.Errorf("start %s: %w", tracer.Name(), err)
	}
	if err := cmd.Wait(); err != nil {
		run.Err = fmt.Errorf("%s: %w", tracer.Name(), err)
	}

	if _, err := os.Stat(run.Path); err != nil {
		run.Close()
		if run.Err != nil {
			return nil, run.Err
		}
		return nil, fmt.Errorf("%s wrote no trace: %w", tracer.Name(), err)
	}
	return run, nil
}
