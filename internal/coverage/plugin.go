package coverage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/yammerjp/gocovrun/internal/gocover"
	"github.com/yammerjp/gocovrun/internal/history"
	"github.com/yammerjp/gocovrun/internal/runner"
)

// Engine is the coverage engine driven by the plugin. *gocover.Engine
// implements it.
type Engine interface {
	DisableCache()
	Start() error
	TestArgs() []string
	Stop() error
	Save() error
	Summaries(opts gocover.ReportOptions) ([]gocover.FileSummary, error)
	Report(w io.Writer, opts gocover.ReportOptions) error
	Annotate(ctx context.Context, opts gocover.ReportOptions) error
	HTMLReport(ctx context.Context, opts gocover.ReportOptions) error
}

// Recorder keeps coverage totals across runs. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, run history.Run, files []gocover.FileSummary) (int64, error)
	LastPercent(ctx context.Context, suite string) (float64, bool, error)
}

// OmitPolicy decides what happens when the omit file cannot be read.
type OmitPolicy int

const (
	// OmitLenient reports without omissions.
	OmitLenient OmitPolicy = iota
	// OmitStrict fails the summary.
	OmitStrict
)

type Plugin struct {
	engine   Engine
	fs       afero.Fs
	policy   OmitPolicy
	recorder Recorder
	suite    string
	log      logrus.FieldLogger
	now      func() time.Time

	startedAt time.Time
}

type Option func(*Plugin)

// WithFs sets the filesystem the omit file is read from.
func WithFs(fsys afero.Fs) Option {
	return func(p *Plugin) {
		p.fs = fsys
	}
}

func WithOmitPolicy(policy OmitPolicy) Option {
	return func(p *Plugin) {
		p.policy = policy
	}
}

// WithHistory records every run's summaries in rec under suite.
func WithHistory(rec Recorder, suite string) Option {
	return func(p *Plugin) {
		p.recorder = rec
		p.suite = suite
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Plugin) {
		p.log = log
	}
}

func New(engine Engine, opts ...Option) *Plugin {
	p := &Plugin{
		engine: engine,
		fs:     afero.NewOsFs(),
		policy: OmitLenient,
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure disables the test cache and starts measurement.
func (p *Plugin) Configure(ctx context.Context, cfg *runner.Config) error {
	p.engine.DisableCache()
	if err := p.engine.Start(); err != nil {
		return err
	}
	p.startedAt = p.now()
	return nil
}

// InstrumentArgs inserts the engine's test flags right after the test verb
// of a go test command. Other commands are returned unchanged.
func (p *Plugin) InstrumentArgs(command []string) []string {
	if !runner.IsGoTest(command) {
		p.log.WithField("command", command).Warn("not a go test command, coverage will not be collected")
		return command
	}
	return runner.InsertTestFlags(command, p.engine.TestArgs()...)
}

// TerminalSummary stops measurement, saves the data and renders the report
// selected by the report option.
func (p *Plugin) TerminalSummary(ctx context.Context, tr *runner.TerminalReporter) error {
	tr.TW.Sep("-", "coverage")
	tr.TW.Line("Processing Coverage...")

	if err := p.engine.Stop(); err != nil {
		return err
	}
	if err := p.engine.Save(); err != nil {
		return err
	}
	if p.recorder != nil {
		p.recordHistory(ctx, tr)
	}

	cfg := tr.Config
	showMissing := truthy(cfg.GetValue(KeyShowMissing))
	omit := cfg.GetValue(KeyOmit)
	reportValue := cfg.GetValue(KeyReport)
	if reportValue == "" {
		reportValue = ModeReport.String()
	}
	directory := cfg.GetValue(KeyDirectory)
	if directory == "" {
		directory = gocover.DefaultDirectory
	}

	opts := gocover.ReportOptions{
		Morfs:        []string{},
		IgnoreErrors: truthy(cfg.GetValue(KeyIgnoreErrors)),
	}
	if omit != "" {
		prefixes, err := readOmitPrefixes(p.fs, omit)
		switch {
		case err == nil:
			opts.OmitPrefixes = prefixes
		case p.policy == OmitStrict:
			return fmt.Errorf("failed to read omit file: %w", err)
		default:
			p.log.WithError(err).WithField("omit", omit).Debug("ignoring unreadable omit file")
		}
	}

	mode, err := ParseReportMode(reportValue)
	if err != nil {
		p.log.WithError(err).Debug("no coverage report produced")
	}
	switch mode {
	case ModeReport:
		opts.ShowMissing = showMissing
		return p.engine.Report(tr.TW, opts)
	case ModeAnnotate:
		opts.Directory = directory
		return p.engine.Annotate(ctx, opts)
	case ModeHTML:
		opts.Directory = directory
		return p.engine.HTMLReport(ctx, opts)
	case ModeUnset:
	}
	return nil
}

// recordHistory stores this run and prints the change against the previous
// run of the suite. History failures never fail the summary.
func (p *Plugin) recordHistory(ctx context.Context, tr *runner.TerminalReporter) {
	files, err := p.engine.Summaries(gocover.ReportOptions{})
	if err != nil {
		p.log.WithError(err).Warn("failed to summarize coverage for history")
		return
	}
	var total gocover.FileSummary
	for _, f := range files {
		total.Statements += f.Statements
		total.Missed += f.Missed
	}

	previous, ok, err := p.recorder.LastPercent(ctx, p.suite)
	if err != nil {
		p.log.WithError(err).Warn("failed to read coverage history")
	}

	run := history.Run{Suite: p.suite, StartedAt: p.startedAt, ExitCode: tr.ExitCode}
	id, err := p.recorder.Record(ctx, run, files)
	if err != nil {
		p.log.WithError(err).Warn("failed to record coverage history")
		return
	}
	p.log.WithFields(logrus.Fields{"run_id": id, "suite": p.suite}).Debug("coverage history recorded")

	if ok {
		tr.TW.Line(fmt.Sprintf("Coverage %.1f%% (previous run %.1f%%, %+.1f)", total.Percent(), previous, total.Percent()-previous))
	} else {
		tr.TW.Line(fmt.Sprintf("Coverage %.1f%% (first recorded run)", total.Percent()))
	}
}

// readOmitPrefixes returns the whitespace-trimmed lines of the omit file.
func readOmitPrefixes(fsys afero.Fs, path string) ([]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var prefixes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		prefixes = append(prefixes, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return prefixes, nil
}
