package coverage

import (
	"fmt"

	"github.com/alecthomas/kong"
)

// ReportMode selects which report is rendered at the end of a run.
type ReportMode int

const (
	ModeUnset ReportMode = iota
	ModeReport
	ModeAnnotate
	ModeHTML
)

var modeNames = map[ReportMode]string{
	ModeReport:   "report",
	ModeAnnotate: "annotate",
	ModeHTML:     "html",
}

func ParseReportMode(s string) (ReportMode, error) {
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return ModeUnset, fmt.Errorf("invalid report mode %q: must be one of report, annotate, html", s)
}

func (m ReportMode) String() string {
	return modeNames[m]
}

// Decode implements kong.MapperValue so --cov-report rejects unknown modes
// while the flag itself stays unset by default.
func (m *ReportMode) Decode(ctx *kong.DecodeContext) error {
	var value string
	if err := ctx.Scan.PopValueInto("report", &value); err != nil {
		return err
	}
	mode, err := ParseReportMode(value)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
