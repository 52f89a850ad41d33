package gocover

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"golang.org/x/tools/cover"
)

const annotateSuffix = ",cover"

// Annotate writes a copy of every reported source file under
// opts.Directory. Each line is prefixed with "> " when it ran, "! " when it
// did not, and two spaces when it holds no statement. Sources that cannot
// be read fail the call unless opts.IgnoreErrors is set.
func (e *Engine) Annotate(ctx context.Context, opts ReportOptions) error {
	if err := e.checkStopped(); err != nil {
		return err
	}
	profiles := Select(e.profiles, opts)
	if len(profiles) == 0 {
		return nil
	}

	dir := opts.directory()
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create annotate directory: %w", err)
	}

	sources, err := e.resolveSources(ctx, profiles)
	if err != nil && !opts.IgnoreErrors {
		return err
	}

	var errs error
	for _, p := range profiles {
		src, ok := sources[p.FileName]
		if !ok {
			errs = e.sourceError(errs, opts, p.FileName, fmt.Errorf("source not found"))
			continue
		}
		content, err := afero.ReadFile(e.fs, src)
		if err != nil {
			errs = e.sourceError(errs, opts, p.FileName, err)
			continue
		}
		out := filepath.Join(dir, FlatName(p.FileName)+annotateSuffix)
		if err := afero.WriteFile(e.fs, out, AnnotateSource(content, p), 0o644); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", out, err))
		}
	}
	return errs
}

func (e *Engine) sourceError(errs error, opts ReportOptions, fileName string, err error) error {
	if opts.IgnoreErrors {
		e.log.WithError(err).WithField("file", fileName).Debug("skipping source")
		return errs
	}
	return multierror.Append(errs, fmt.Errorf("%s: %w", fileName, err))
}

func (e *Engine) resolveSources(ctx context.Context, profiles []*cover.Profile) (map[string]string, error) {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.FileName)
	}
	sources, err := e.resolver.Resolve(ctx, names)
	if sources == nil {
		sources = map[string]string{}
	}
	return sources, err
}

// AnnotateSource prefixes every line of content with its execution marker.
func AnnotateSource(content []byte, p *cover.Profile) []byte {
	marks := classifyLines(p)
	text := strings.TrimSuffix(string(content), "\n")
	var buf bytes.Buffer
	for i, line := range strings.Split(text, "\n") {
		switch marks[i+1] {
		case lineExecuted:
			buf.WriteString("> ")
		case lineMissed:
			buf.WriteString("! ")
		default:
			buf.WriteString("  ")
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
