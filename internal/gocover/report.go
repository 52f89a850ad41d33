package gocover

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Report writes a per-file statement coverage table followed by a TOTAL
// footer. With ShowMissing the unexecuted line ranges are listed too.
func (e *Engine) Report(w io.Writer, opts ReportOptions) error {
	summaries, err := e.Summaries(opts)
	if err != nil {
		return err
	}

	header := []string{"Name", "Stmts", "Miss", "Cover"}
	if opts.ShowMissing {
		header = append(header, "Missing")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	var total FileSummary
	for _, s := range summaries {
		total.Statements += s.Statements
		total.Missed += s.Missed
		row := []string{
			s.Name,
			strconv.Itoa(s.Statements),
			strconv.Itoa(s.Missed),
			formatPercent(s.Percent()),
		}
		if opts.ShowMissing {
			row = append(row, FormatRanges(s.Missing))
		}
		table.Append(row)
	}

	footer := []string{
		"TOTAL",
		strconv.Itoa(total.Statements),
		strconv.Itoa(total.Missed),
		formatPercent(total.Percent()),
	}
	if opts.ShowMissing {
		footer = append(footer, "")
	}
	table.SetFooter(footer)
	table.Render()
	return nil
}

// formatPercent rounds to whole percents but never shows 0% or 100% for
// partial coverage.
func formatPercent(p float64) string {
	switch {
	case p > 0 && p < 1:
		p = 1
	case p > 99 && p < 100:
		p = 99
	}
	return fmt.Sprintf("%.0f%%", p)
}
