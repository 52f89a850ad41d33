package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// DefaultWidth is the width separator lines are padded to.
const DefaultWidth = 80

// Writer emits the end-of-run summary: separator lines and plain lines.
// It also implements io.Writer so reports can stream through it.
type Writer struct {
	w      io.Writer
	width  int
	markup bool
}

// New returns a Writer that styles separators unless colour output is
// disabled for the process.
func New(w io.Writer) *Writer {
	return &Writer{
		w:      w,
		width:  DefaultWidth,
		markup: !color.NoColor,
	}
}

// NewPlain returns a Writer that never emits escape sequences.
func NewPlain(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		width: DefaultWidth,
	}
}

func (tw *Writer) Write(p []byte) (int, error) {
	return tw.w.Write(p)
}

// Sep writes a line of sepChar filling the terminal width with title
// centred in it.
func (tw *Writer) Sep(sepChar string, title string) {
	line := SepLine(sepChar, title, tw.width)
	if tw.markup {
		c := color.New(color.Bold)
		c.EnableColor()
		c.Fprintln(tw.w, line)
		return
	}
	fmt.Fprintln(tw.w, line)
}

// Line writes s followed by a newline.
func (tw *Writer) Line(s string) {
	fmt.Fprintln(tw.w, s)
}

// SepLine builds a separator like "----- title -----" of the given width.
func SepLine(sepChar string, title string, width int) string {
	if sepChar == "" {
		sepChar = "-"
	}
	if title == "" {
		return strings.Repeat(sepChar, width/len(sepChar))
	}
	n := (width - len(title) - 2) / (2 * len(sepChar))
	if n < 1 {
		n = 1
	}
	fill := strings.Repeat(sepChar, n)
	line := fill + " " + title + " " + fill
	if len(line)+len(sepChar) <= width {
		line += sepChar
	}
	return line
}
