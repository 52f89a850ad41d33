// Package xmlresult writes a machine-readable XML log of the test results
// of a go test run, decoded from its -json event stream.
package xmlresult

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/yammerjp/gocovrun/internal/runner"
)

// Key is the destination key of the log path in runner.Config.
const Key = "xmlresult"

type Options struct {
	XMLResult string `kong:"name='xmlresult',group='xmlresult',placeholder='PATH',help='Path for a machine-readable XML result log.'"`
}

func (o Options) Apply(cfg *runner.Config) {
	cfg.SetValue(Key, o.XMLResult)
}

// Plugin is inactive unless the xmlresult option is set.
type Plugin struct {
	fs  afero.Fs
	log logrus.FieldLogger
	now func() time.Time

	path      string
	file      afero.File
	collector *collector
	writer    *eventWriter
	started   time.Time
}

type Option func(*Plugin)

func WithFs(fsys afero.Fs) Option {
	return func(p *Plugin) {
		p.fs = fsys
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Plugin) {
		p.log = log
	}
}

func New(opts ...Option) *Plugin {
	p := &Plugin{
		fs:  afero.NewOsFs(),
		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure opens the log file so a bad path fails before any test runs.
func (p *Plugin) Configure(ctx context.Context, cfg *runner.Config) error {
	p.path = cfg.GetValue(Key)
	if p.path == "" {
		return nil
	}
	f, err := p.fs.Create(p.path)
	if err != nil {
		return fmt.Errorf("failed to open xml result log: %w", err)
	}
	p.file = f
	p.collector = newCollector()
	p.started = p.now()
	return nil
}

// InstrumentArgs switches go test to -json output.
func (p *Plugin) InstrumentArgs(command []string) []string {
	if p.file == nil {
		return command
	}
	if !runner.IsGoTest(command) {
		p.log.WithField("command", command).Warn("not a go test command, xml result log will be empty")
		return command
	}
	for _, arg := range command[2:] {
		if arg == "-json" {
			return command
		}
	}
	return runner.InsertTestFlags(command, "-json")
}

// WrapOutput decodes the event stream and passes the plain test log on
// to stdout.
func (p *Plugin) WrapOutput(stdout io.Writer) io.Writer {
	if p.file == nil {
		return stdout
	}
	p.writer = &eventWriter{out: stdout, c: p.collector}
	return p.writer
}

// TerminalSummary writes the collected results and closes the log.
func (p *Plugin) TerminalSummary(ctx context.Context, tr *runner.TerminalReporter) error {
	if p.file == nil {
		return nil
	}
	if p.writer != nil {
		if err := p.writer.Flush(); err != nil {
			return err
		}
	}

	suite := p.collector.suite(p.now().Sub(p.started))
	err := writeSuite(p.file, suite)
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write xml result log: %w", err)
	}
	p.log.WithFields(logrus.Fields{"path": p.path, "tests": suite.Tests}).Debug("xml result log written")
	tr.TW.Line("generated xml file: " + p.path)
	return nil
}

// Close releases the log file if the run ended before the summary.
func (p *Plugin) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
