package gocover

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/tools/cover"
)

// ReportOptions is the argument bag shared by all report methods.
type ReportOptions struct {
	// Morfs restricts the report to files under these prefixes. Empty means
	// every tracked file.
	Morfs        []string
	IgnoreErrors bool
	// OmitPrefixes excludes files whose import path starts with any entry.
	// Empty entries are ignored.
	OmitPrefixes []string
	ShowMissing  bool
	Directory    string
}

func (o ReportOptions) directory() string {
	if o.Directory == "" {
		return DefaultDirectory
	}
	return o.Directory
}

// Select returns the profiles the options report on, in input order.
func Select(profiles []*cover.Profile, opts ReportOptions) []*cover.Profile {
	selected := make([]*cover.Profile, 0, len(profiles))
	for _, p := range profiles {
		if len(opts.Morfs) > 0 && !hasAnyPrefix(p.FileName, opts.Morfs) {
			continue
		}
		if hasAnyPrefix(p.FileName, opts.OmitPrefixes) {
			continue
		}
		selected = append(selected, p)
	}
	return selected
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// WriteProfiles writes profiles in the go test -coverprofile format.
func WriteProfiles(w io.Writer, profiles []*cover.Profile) error {
	mode := "set"
	if len(profiles) > 0 && profiles[0].Mode != "" {
		mode = profiles[0].Mode
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "mode: %s\n", mode)
	for _, p := range profiles {
		for _, b := range p.Blocks {
			fmt.Fprintf(bw, "%s:%d.%d,%d.%d %d %d\n",
				p.FileName, b.StartLine, b.StartCol, b.EndLine, b.EndCol, b.NumStmt, b.Count)
		}
	}
	return bw.Flush()
}

// FlatName turns a profile file name into a single path element.
func FlatName(fileName string) string {
	return flatReplacer.Replace(fileName)
}

var flatReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")
