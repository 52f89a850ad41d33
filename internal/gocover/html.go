package gocover

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/tools/cover"
)

const htmlIndex = "index.html"

// HTMLReport renders the reported files with go tool cover into
// opts.Directory/index.html. With opts.IgnoreErrors, files whose sources
// cannot be found are dropped instead of failing the render.
func (e *Engine) HTMLReport(ctx context.Context, opts ReportOptions) error {
	if err := e.checkStopped(); err != nil {
		return err
	}
	profiles := Select(e.profiles, opts)
	if opts.IgnoreErrors {
		profiles = e.readableProfiles(ctx, profiles)
	}
	if len(profiles) == 0 {
		e.log.Warn("no coverage data, html report skipped")
		return nil
	}

	dir := opts.directory()
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create html directory: %w", err)
	}

	filtered := filepath.Join(e.workDir, "html-"+profileName)
	if err := e.writeProfileFile(filtered, profiles); err != nil {
		return fmt.Errorf("failed to write html profile: %w", err)
	}

	out := filepath.Join(dir, htmlIndex)
	command := []string{e.goBin, "tool", "cover", "-html=" + filtered, "-o", out}
	if _, err := e.runner.Output(ctx, command); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	e.log.WithField("path", out).Debug("html report written")
	return nil
}

func (e *Engine) readableProfiles(ctx context.Context, profiles []*cover.Profile) []*cover.Profile {
	sources, err := e.resolveSources(ctx, profiles)
	if err != nil {
		e.log.WithError(err).Debug("resolving sources")
	}
	readable := make([]*cover.Profile, 0, len(profiles))
	for _, p := range profiles {
		src, ok := sources[p.FileName]
		if !ok {
			continue
		}
		if exists, _ := afero.Exists(e.fs, src); !exists {
			continue
		}
		readable = append(readable, p)
	}
	return readable
}
