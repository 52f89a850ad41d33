// Package gocover measures coverage of a Go test run with the toolchain's
// own instrumentation (go test -coverprofile) and renders the resulting
// profile as a text table, annotated sources or an HTML page.
//
// An Engine is single-use: DisableCache and Start before the tests run,
// Stop once they have finished, then Save and any of the report methods.
package gocover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/tools/cover"

	"github.com/yammerjp/gocovrun/internal/executor"
)

const (
	DefaultDataFile  = ".coverprofile"
	DefaultDirectory = "coverage"
	profileName      = "coverage.out"
)

var (
	ErrAlreadyStarted = errors.New("coverage measurement already started")
	ErrNotStarted     = errors.New("coverage measurement not started")
	ErrNotStopped     = errors.New("coverage measurement not stopped")
)

// CommandRunner runs a helper command (go list, go tool cover) and returns
// its stdout.
type CommandRunner interface {
	Output(ctx context.Context, command []string) ([]byte, error)
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

type Engine struct {
	fs       afero.Fs
	goBin    string
	dataFile string
	tempRoot string
	runner   CommandRunner
	resolver SourceResolver
	log      logrus.FieldLogger

	noCache  bool
	state    state
	workDir  string
	profile  string
	profiles []*cover.Profile
}

type Option func(*Engine)

// WithGoBinary sets the go command used for go list and go tool cover.
func WithGoBinary(bin string) Option {
	return func(e *Engine) {
		e.goBin = bin
	}
}

// WithDataFile sets where Save persists the profile.
func WithDataFile(path string) Option {
	return func(e *Engine) {
		e.dataFile = path
	}
}

// WithTempRoot sets the parent of the private work directory.
func WithTempRoot(dir string) Option {
	return func(e *Engine) {
		e.tempRoot = dir
	}
}

func WithCommandRunner(r CommandRunner) Option {
	return func(e *Engine) {
		e.runner = r
	}
}

func WithSourceResolver(r SourceResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func New(fsys afero.Fs, opts ...Option) *Engine {
	e := &Engine{
		fs:       fsys,
		goBin:    "go",
		dataFile: DefaultDataFile,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = executor.New()
	}
	if e.resolver == nil {
		e.resolver = &GoListResolver{GoBin: e.goBin, Runner: e.runner}
	}
	return e
}

// DisableCache makes the test run bypass go's test result cache, so every
// package is executed and measured again.
func (e *Engine) DisableCache() {
	e.noCache = true
}

// Start prepares a fresh profile location. It may be called once.
func (e *Engine) Start() error {
	if e.state != stateIdle {
		return ErrAlreadyStarted
	}
	dir, err := afero.TempDir(e.fs, e.tempRoot, "gocovrun-")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	e.workDir = dir
	e.profile = filepath.Join(dir, profileName)
	e.state = stateRunning
	e.log.WithField("profile", e.profile).Debug("coverage measurement started")
	return nil
}

// ProfilePath is where the test run writes its profile.
func (e *Engine) ProfilePath() string {
	return e.profile
}

// TestArgs returns the go test flags that record coverage into the
// engine's profile.
func (e *Engine) TestArgs() []string {
	args := []string{"-coverprofile=" + e.profile}
	if e.noCache {
		args = append(args, "-count=1")
	}
	return args
}

// Stop freezes the measurement and loads the recorded profile. A run that
// produced no profile, for example one without test files, yields no data.
func (e *Engine) Stop() error {
	if e.state != stateRunning {
		return ErrNotStarted
	}
	e.state = stateStopped

	profiles, err := e.readProfiles(e.profile)
	if err != nil {
		return err
	}
	e.profiles = profiles
	e.log.WithField("files", len(profiles)).Debug("coverage measurement stopped")
	return nil
}

// Profiles returns the data loaded by Stop.
func (e *Engine) Profiles() []*cover.Profile {
	return e.profiles
}

// Save writes the recorded data to the data file.
func (e *Engine) Save() error {
	if e.state != stateStopped {
		return ErrNotStopped
	}
	if err := e.writeProfileFile(e.dataFile, e.profiles); err != nil {
		return fmt.Errorf("failed to save coverage data: %w", err)
	}
	return nil
}

// Close removes the work directory.
func (e *Engine) Close() error {
	if e.workDir == "" {
		return nil
	}
	return e.fs.RemoveAll(e.workDir)
}

func (e *Engine) readProfiles(path string) ([]*cover.Profile, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.log.WithField("profile", path).Warn("no coverage profile was written")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open coverage profile: %w", err)
	}
	defer f.Close()

	profiles, err := cover.ParseProfilesFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse coverage profile: %w", err)
	}
	return profiles, nil
}

func (e *Engine) writeProfileFile(path string, profiles []*cover.Profile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := e.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := e.fs.Create(path)
	if err != nil {
		return err
	}
	if err := WriteProfiles(f, profiles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (e *Engine) checkStopped() error {
	if e.state != stateStopped {
		return ErrNotStopped
	}
	return nil
}
