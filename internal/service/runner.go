package service

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	pkgerrors "hytun/pkg/errors"
)

// Result is the outcome of one external command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external programs. Every invocation carries an explicit
// timeout; a command that overruns it is killed and reported as timed out.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewRunner returns the default exec-backed runner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and captures its output. A non-zero exit is
// reported through Result, not through the error return; the error return is
// reserved for timeouts and failures to start the process at all.
func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return nil, &pkgerrors.CommandError{
				Cmd:     name + " " + strings.Join(args, " "),
				Timeout: true,
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, err
	}

	return res, nil
}
