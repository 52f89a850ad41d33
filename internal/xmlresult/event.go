package xmlresult

import (
	"bytes"
	"io"
	"regexp"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Action is the kind of a go test -json event.
type Action string

const (
	ActionStart  Action = "start"
	ActionRun    Action = "run"
	ActionPause  Action = "pause"
	ActionCont   Action = "cont"
	ActionPass   Action = "pass"
	ActionBench  Action = "bench"
	ActionFail   Action = "fail"
	ActionOutput Action = "output"
	ActionSkip   Action = "skip"
)

// Event is one line of go test -json output, see cmd/test2json.
type Event struct {
	Time    time.Time
	Action  Action
	Package string
	Test    string
	Elapsed float64 // seconds
	Output  string
}

// -json does not cover packages that fail to build, go test reports those
// as plain lines.
var buildFailed = regexp.MustCompile(`^FAIL\s+(\S+)\s+\[(build|setup) failed\]`)

// eventWriter decodes a go test -json stream line by line. Each event goes
// to the collector and its output text to out, so the user still sees the
// plain test log.
type eventWriter struct {
	out io.Writer
	c   *collector
	buf []byte
}

func (w *eventWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if err := w.line(w.buf[:i+1]); err != nil {
			return 0, err
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush handles a trailing line without newline.
func (w *eventWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	err := w.line(w.buf)
	w.buf = nil
	return err
}

func (w *eventWriter) line(line []byte) error {
	trimmed := bytes.TrimRight(line, "\r\n")
	if bytes.HasPrefix(trimmed, []byte{'{'}) {
		var ev Event
		if err := json.Unmarshal(trimmed, &ev); err == nil {
			w.c.add(ev)
			if ev.Action == ActionOutput {
				_, err := io.WriteString(w.out, ev.Output)
				return err
			}
			return nil
		}
	}
	if m := buildFailed.FindSubmatch(trimmed); m != nil {
		w.c.packageError(string(m[1]), string(trimmed))
	}
	_, err := w.out.Write(line)
	return err
}
