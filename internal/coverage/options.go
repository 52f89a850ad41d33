// Package coverage binds a gocover Engine to the runner lifecycle: it
// starts measurement when the run is configured and stops, saves and
// reports once the test command has exited.
package coverage

import (
	"strconv"

	"github.com/yammerjp/gocovrun/internal/runner"
)

// Destination keys of the coverage options in runner.Config.
const (
	KeyShowMissing  = "show_missing"
	KeyReport       = "report"
	KeyDirectory    = "directory"
	KeyIgnoreErrors = "ignore_errors"
	KeyOmit         = "omit"
)

// Options are the coverage command line flags. Embedded into the CLI with
// the "cov-" prefix.
type Options struct {
	ShowMissing  string     `kong:"name='show-missing',group='coverage',placeholder='FLAG',help='Show line numbers of statements that were not executed.'"`
	Report       ReportMode `kong:"name='report',group='coverage',placeholder='report|annotate|html',help='Type of report to generate (default: report).'"`
	Directory    string     `kong:"name='directory',group='coverage',placeholder='DIR',help='Output directory for annotate and html reports (default: coverage).'"`
	IgnoreErrors string     `kong:"name='ignore-errors',group='coverage',placeholder='FLAG',help='Ignore source files that cannot be read.'"`
	Omit         string     `kong:"name='omit',group='coverage',placeholder='FILE',help='File of newline separated import-path prefixes to leave out of the report.'"`
	StrictOmit   bool       `kong:"name='strict-omit',group='coverage',help='Fail when the omit file cannot be read.'"`
}

// Apply stores the option values in cfg under their destination keys.
// Unset options stay unset.
func (o Options) Apply(cfg *runner.Config) {
	cfg.SetValue(KeyShowMissing, o.ShowMissing)
	if o.Report != ModeUnset {
		cfg.SetValue(KeyReport, o.Report.String())
	}
	cfg.SetValue(KeyDirectory, o.Directory)
	cfg.SetValue(KeyIgnoreErrors, o.IgnoreErrors)
	cfg.SetValue(KeyOmit, o.Omit)
}

// OmitPolicy returns the policy selected by --cov-strict-omit.
func (o Options) OmitPolicy() OmitPolicy {
	if o.StrictOmit {
		return OmitStrict
	}
	return OmitLenient
}

// truthy reports whether a flag value switches its option on. Any
// non-empty value does, except the ones strconv.ParseBool reads as false.
func truthy(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}
