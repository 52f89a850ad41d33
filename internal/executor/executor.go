package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// Executor runs a test command as a child process with stdio passed
// through and SIGINT/SIGTERM forwarded.
type Executor struct {
	sigChan chan os.Signal
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	env     []string
	dir     string
}

type Option func(*Executor)

// WithOutput redirects the child's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithEnv appends entries to the inherited environment.
func WithEnv(env []string) Option {
	return func(e *Executor) {
		e.env = env
	}
}

// WithDir sets the working directory of the child.
func WithDir(dir string) Option {
	return func(e *Executor) {
		e.dir = dir
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		sigChan: make(chan os.Signal, 1),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, command []string) (int, error) {
	return e.ExecuteTo(ctx, command, e.stdout)
}

// ExecuteTo is Execute with the child's stdout sent to stdout instead.
func (e *Executor) ExecuteTo(ctx context.Context, command []string, stdout io.Writer) (int, error) {
	if len(command) == 0 {
		return -1, errors.New("command is required")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = e.stdin
	cmd.Stdout = stdout
	cmd.Stderr = e.stderr
	cmd.Dir = e.dir
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	signal.Notify(e.sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(e.sigChan)

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			return -1, fmt.Errorf("failed to kill process: %w", err)
		}
		return -1, ctx.Err()
	case sig := <-e.sigChan:
		if err := cmd.Process.Signal(sig); err != nil {
			return -1, fmt.Errorf("failed to forward signal: %w", err)
		}
		// the child decides how to exit on the forwarded signal
		err := <-done
		return GetExitCode(err), err
	case err := <-done:
		return GetExitCode(err), err
	}
}

// Output runs command and returns its stdout. Stderr is discarded unless
// the command fails, in which case it is part of the error.
func (e *Executor) Output(ctx context.Context, command []string) ([]byte, error) {
	if len(command) == 0 {
		return nil, errors.New("command is required")
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = e.dir
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", command[0], err, exitErr.Stderr)
		}
		return out, fmt.Errorf("%s: %w", command[0], err)
	}
	return out, nil
}

func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		return 1
	}

	return -1
}
