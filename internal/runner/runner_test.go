package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/yammerjp/gocovrun/internal/terminal"
)

type fakeExecutor struct {
	exitCode int
	err      error
	got      []string
	events   *[]string
}

func (f *fakeExecutor) ExecuteTo(ctx context.Context, command []string, stdout io.Writer) (int, error) {
	f.got = command
	fmt.Fprintln(stdout, "test output")
	if f.events != nil {
		*f.events = append(*f.events, "execute")
	}
	return f.exitCode, f.err
}

type recordingPlugin struct {
	events       *[]string
	configureErr error
	summaryErr   error
	extraArg     string
	seenOption   string
}

func (p *recordingPlugin) Configure(ctx context.Context, cfg *Config) error {
	*p.events = append(*p.events, "configure")
	return p.configureErr
}

func (p *recordingPlugin) TerminalSummary(ctx context.Context, tr *TerminalReporter) error {
	*p.events = append(*p.events, "summary")
	p.seenOption = tr.Config.GetValue("report")
	tr.TW.Line("summary line")
	return p.summaryErr
}

func (p *recordingPlugin) InstrumentArgs(command []string) []string {
	if p.extraArg == "" {
		return command
	}
	return append(command, p.extraArg)
}

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		command      []string
		execCode     int
		execErr      error
		configureErr error
		summaryErr   error
		wantCode     int
		wantErr      error
		wantEvents   []string
		wantCommand  []string
	}{
		{
			name:        "passing tests",
			command:     []string{"go", "test", "./pkg/..."},
			wantCode:    0,
			wantEvents:  []string{"configure", "execute", "summary"},
			wantCommand: []string{"go", "test", "./pkg/...", "-extra"},
		},
		{
			name:        "default command",
			wantCode:    0,
			wantEvents:  []string{"configure", "execute", "summary"},
			wantCommand: []string{"go", "test", "./...", "-extra"},
		},
		{
			name:        "failing tests still produce summary",
			command:     []string{"go", "test"},
			execCode:    1,
			execErr:     errors.New("exit status 1"),
			wantCode:    1,
			wantEvents:  []string{"configure", "execute", "summary"},
			wantCommand: []string{"go", "test", "-extra"},
		},
		{
			name:        "command cannot start",
			command:     []string{"missing"},
			execCode:    -1,
			execErr:     errors.New("failed to start command"),
			wantCode:    InternalError,
			wantEvents:  []string{"configure", "execute"},
			wantCommand: []string{"missing", "-extra"},
		},
		{
			name:         "configure failure",
			command:      []string{"go", "test"},
			configureErr: errors.New("boom"),
			wantCode:     InternalError,
			wantErr:      ErrHook,
			wantEvents:   []string{"configure"},
		},
		{
			name:        "summary failure",
			command:     []string{"go", "test"},
			summaryErr:  errors.New("boom"),
			wantCode:    InternalError,
			wantErr:     ErrHook,
			wantEvents:  []string{"configure", "execute", "summary"},
			wantCommand: []string{"go", "test", "-extra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []string
			exec := &fakeExecutor{exitCode: tt.execCode, err: tt.execErr, events: &events}
			plugin := &recordingPlugin{
				events:       &events,
				configureErr: tt.configureErr,
				summaryErr:   tt.summaryErr,
				extraArg:     "-extra",
			}
			var out bytes.Buffer
			r := New(exec, terminal.NewPlain(&out), plugin)

			cfg := NewConfig(tt.command)
			cfg.SetValue("report", "html")

			code, err := r.Run(context.Background(), cfg)
			if code != tt.wantCode {
				t.Errorf("Run() code = %v, want %v", code, tt.wantCode)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(events, tt.wantEvents) {
				t.Errorf("events = %v, want %v", events, tt.wantEvents)
			}
			if tt.wantCommand != nil && !reflect.DeepEqual(exec.got, tt.wantCommand) {
				t.Errorf("executed %v, want %v", exec.got, tt.wantCommand)
			}
			if contains(events, "summary") && plugin.seenOption != "html" {
				t.Errorf("plugin saw report = %q, want html", plugin.seenOption)
			}
		})
	}
}

func TestRun_NoPlugins(t *testing.T) {
	exec := &fakeExecutor{}
	r := New(exec, terminal.NewPlain(&bytes.Buffer{}))

	code, err := r.Run(context.Background(), NewConfig([]string{"go", "test", "./..."}))
	if err != nil || code != 0 {
		t.Fatalf("Run() = %v, %v", code, err)
	}
	if !reflect.DeepEqual(exec.got, []string{"go", "test", "./..."}) {
		t.Errorf("executed %v", exec.got)
	}
}

type upperPlugin struct {
	recordingPlugin
}

func (p *upperPlugin) WrapOutput(stdout io.Writer) io.Writer {
	return upperWriter{stdout}
}

type upperWriter struct {
	w io.Writer
}

func (u upperWriter) Write(b []byte) (int, error) {
	if _, err := u.w.Write([]byte(strings.ToUpper(string(b)))); err != nil {
		return 0, err
	}
	return len(b), nil
}

func TestRun_OutputWrapper(t *testing.T) {
	var events []string
	exec := &fakeExecutor{}
	var out bytes.Buffer
	r := New(exec, terminal.NewPlain(&out), &upperPlugin{recordingPlugin{events: &events}})

	if _, err := r.Run(context.Background(), NewConfig([]string{"go", "test"})); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "TEST OUTPUT") {
		t.Errorf("test output not routed through the wrapper: %q", out.String())
	}
}

func TestConfig(t *testing.T) {
	command := []string{"go", "test"}
	cfg := NewConfig(command)

	got := cfg.Command()
	got[0] = "changed"
	if cfg.Command()[0] != "go" {
		t.Errorf("Command() must return a copy")
	}

	if v := cfg.GetValue("omit"); v != "" {
		t.Errorf("GetValue(unset) = %q", v)
	}
	cfg.SetValue("omit", "omit.txt")
	if v := cfg.GetValue("omit"); v != "omit.txt" {
		t.Errorf("GetValue() = %q", v)
	}
	cfg.SetValue("omit", "")
	if v := cfg.GetValue("omit"); v != "" {
		t.Errorf("GetValue() after clearing = %q", v)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRun_SummaryFailureRunsLaterPlugins(t *testing.T) {
	var events []string
	cause := errors.New("annotate: source not found")
	failing := &recordingPlugin{events: &events, summaryErr: cause}
	later := &recordingPlugin{events: &events}
	var out bytes.Buffer
	r := New(&fakeExecutor{events: &events}, terminal.NewPlain(&out), failing, later)

	code, err := r.Run(context.Background(), NewConfig([]string{"go", "test"}))
	if code != InternalError {
		t.Errorf("Run() code = %v, want %v", code, InternalError)
	}
	if !errors.Is(err, ErrHook) || !errors.Is(err, cause) {
		t.Errorf("Run() error = %v, want ErrHook wrapping %v", err, cause)
	}
	want := []string{"configure", "configure", "execute", "summary", "summary"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}
