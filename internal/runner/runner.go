// Package runner drives a test command through its lifecycle and lets
// plugins hook into it: Configure runs before the command starts and
// TerminalSummary runs once it has exited.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/yammerjp/gocovrun/internal/terminal"
)

const (
	InternalError = 3
	UsageError    = 4
)

// ErrHook marks a failure raised by a plugin hook.
var ErrHook = errors.New("plugin hook failed")

// DefaultCommand is run when no test command is given.
var DefaultCommand = []string{"go", "test", "./..."}

// Plugin receives the runner's lifecycle events.
type Plugin interface {
	Configure(ctx context.Context, cfg *Config) error
	TerminalSummary(ctx context.Context, tr *TerminalReporter) error
}

// ArgsInstrumenter is implemented by plugins that need extra arguments on
// the test command, after Configure has run.
type ArgsInstrumenter interface {
	InstrumentArgs(command []string) []string
}

// OutputWrapper is implemented by plugins that consume the test command's
// stdout. The returned writer forwards what the user should see to stdout.
type OutputWrapper interface {
	WrapOutput(stdout io.Writer) io.Writer
}

// Executor runs the test command with its stdout sent to stdout and
// reports its exit code.
type Executor interface {
	ExecuteTo(ctx context.Context, command []string, stdout io.Writer) (int, error)
}

// TerminalReporter is handed to TerminalSummary hooks. ExitCode is the
// test command's exit code.
type TerminalReporter struct {
	Config   *Config
	TW       *terminal.Writer
	ExitCode int
}

type Runner struct {
	exec    Executor
	tw      *terminal.Writer
	plugins []Plugin
	log     logrus.FieldLogger
}

func New(exec Executor, tw *terminal.Writer, plugins ...Plugin) *Runner {
	return &Runner{
		exec:    exec,
		tw:      tw,
		plugins: plugins,
		log:     logrus.StandardLogger(),
	}
}

// WithLogger replaces the standard logrus logger.
func (r *Runner) WithLogger(log logrus.FieldLogger) *Runner {
	r.log = log
	return r
}

// Run configures every plugin, executes the test command and emits the
// terminal summary. The returned code is the test command's own exit code;
// a hook failure returns InternalError and an error wrapping ErrHook.
// Every plugin's summary runs even when an earlier one fails.
func (r *Runner) Run(ctx context.Context, cfg *Config) (int, error) {
	for _, p := range r.plugins {
		if err := p.Configure(ctx, cfg); err != nil {
			return InternalError, fmt.Errorf("%w: configure: %w", ErrHook, err)
		}
	}

	command := cfg.Command()
	if len(command) == 0 {
		command = append([]string(nil), DefaultCommand...)
	}
	for _, p := range r.plugins {
		if ai, ok := p.(ArgsInstrumenter); ok {
			command = ai.InstrumentArgs(command)
		}
	}
	var stdout io.Writer = r.tw
	for _, p := range r.plugins {
		if ow, ok := p.(OutputWrapper); ok {
			stdout = ow.WrapOutput(stdout)
		}
	}
	r.log.WithField("command", command).Debug("running tests")

	exitCode, err := r.exec.ExecuteTo(ctx, command, stdout)
	if err != nil && exitCode < 0 {
		return InternalError, err
	}
	r.log.WithField("exit_code", exitCode).Debug("tests finished")

	tr := &TerminalReporter{Config: cfg, TW: r.tw, ExitCode: exitCode}
	var errs *multierror.Error
	for _, p := range r.plugins {
		if err := p.TerminalSummary(ctx, tr); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return InternalError, fmt.Errorf("%w: terminal summary: %w", ErrHook, err)
	}
	return exitCode, nil
}
