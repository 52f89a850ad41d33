package gocover

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/cover"
)

// LineRange is an inclusive range of source lines.
type LineRange struct {
	Start int
	End   int
}

func (r LineRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// FormatRanges joins ranges the way the Missing column shows them.
func FormatRanges(ranges []LineRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}

// FileSummary aggregates one profile file.
type FileSummary struct {
	Name       string
	Statements int
	Missed     int
	Missing    []LineRange
}

// Percent is the share of executed statements. A file without statements
// counts as fully covered.
func (s FileSummary) Percent() float64 {
	if s.Statements == 0 {
		return 100
	}
	return 100 * float64(s.Statements-s.Missed) / float64(s.Statements)
}

// Summaries aggregates the recorded data per file after applying opts.
func (e *Engine) Summaries(opts ReportOptions) ([]FileSummary, error) {
	if err := e.checkStopped(); err != nil {
		return nil, err
	}
	profiles := Select(e.profiles, opts)
	summaries := make([]FileSummary, 0, len(profiles))
	for _, p := range profiles {
		summaries = append(summaries, Summarize(p))
	}
	return summaries, nil
}

// Summarize counts statements of p and collects the lines that only
// unexecuted blocks touch.
func Summarize(p *cover.Profile) FileSummary {
	s := FileSummary{Name: p.FileName}
	lines := classifyLines(p)
	for _, b := range p.Blocks {
		s.Statements += b.NumStmt
		if b.Count == 0 {
			s.Missed += b.NumStmt
		}
	}
	var missing []int
	for line, mark := range lines {
		if mark == lineMissed {
			missing = append(missing, line)
		}
	}
	sort.Ints(missing)
	s.Missing = toRanges(missing)
	return s
}

type lineMark int

const (
	lineNone lineMark = iota
	lineMissed
	lineExecuted
)

// classifyLines marks every line covered by a block. A line touched by any
// executed block counts as executed.
func classifyLines(p *cover.Profile) map[int]lineMark {
	marks := make(map[int]lineMark)
	for _, b := range p.Blocks {
		mark := lineMissed
		if b.Count > 0 {
			mark = lineExecuted
		}
		for line := b.StartLine; line <= b.EndLine; line++ {
			if marks[line] < mark {
				marks[line] = mark
			}
		}
	}
	return marks
}

func toRanges(sorted []int) []LineRange {
	if len(sorted) == 0 {
		return nil
	}
	var ranges []LineRange
	cur := LineRange{Start: sorted[0], End: sorted[0]}
	for _, line := range sorted[1:] {
		switch {
		case line == cur.End:
		case line == cur.End+1:
			cur.End = line
		default:
			ranges = append(ranges, cur)
			cur = LineRange{Start: line, End: line}
		}
	}
	return append(ranges, cur)
}
