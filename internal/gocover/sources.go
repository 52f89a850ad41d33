package gocover

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// SourceResolver maps profile file names to files on disk.
type SourceResolver interface {
	Resolve(ctx context.Context, fileNames []string) (map[string]string, error)
}

// GoListResolver resolves import-path file names with go list. Absolute
// file names are used as they are. Names whose package go list cannot
// locate are left out of the result.
type GoListResolver struct {
	GoBin  string
	Runner CommandRunner
}

func (r *GoListResolver) Resolve(ctx context.Context, fileNames []string) (map[string]string, error) {
	resolved := make(map[string]string, len(fileNames))
	pkgSet := make(map[string]struct{})
	for _, name := range fileNames {
		if filepath.IsAbs(name) {
			resolved[name] = name
			continue
		}
		pkgSet[path.Dir(name)] = struct{}{}
	}
	if len(pkgSet) == 0 {
		return resolved, nil
	}

	pkgs := make([]string, 0, len(pkgSet))
	for pkg := range pkgSet {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	command := append([]string{r.GoBin, "list", "-e", "-f", "{{.ImportPath}}\t{{.Dir}}"}, pkgs...)
	out, err := r.Runner.Output(ctx, command)
	if err != nil {
		return resolved, fmt.Errorf("failed to locate package sources: %w", err)
	}
	dirs := parsePackageDirs(out)

	for _, name := range fileNames {
		if filepath.IsAbs(name) {
			continue
		}
		dir, ok := dirs[path.Dir(name)]
		if !ok || dir == "" {
			continue
		}
		resolved[name] = filepath.Join(dir, path.Base(name))
	}
	return resolved, nil
}

func parsePackageDirs(out []byte) map[string]string {
	dirs := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		importPath, dir, ok := strings.Cut(scanner.Text(), "\t")
		if !ok {
			continue
		}
		dirs[importPath] = dir
	}
	return dirs
}
