package xmlresult

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

type testSuite struct {
	XMLName  xml.Name   `xml:"testsuite"`
	Errors   int        `xml:"errors,attr"`
	Failures int        `xml:"failures,attr"`
	Skips    int        `xml:"skips,attr"`
	Name     string     `xml:"name,attr"`
	Tests    int        `xml:"tests,attr"`
	Time     string     `xml:"time,attr"`
	Cases    []testCase `xml:"testcase"`
}

type testCase struct {
	Method  string  `xml:"test_method,attr"`
	Name    string  `xml:"name,attr"`
	Time    string  `xml:"time,attr"`
	Error   *detail `xml:"error,omitempty"`
	Failure *detail `xml:"failure,omitempty"`
	Skipped *detail `xml:"skipped,omitempty"`
}

type detail struct {
	Text string `xml:",cdata"`
}

type caseKey struct {
	pkg  string
	test string
}

// collector turns test events into test cases. Output of passing tests is
// dropped; failures and skips keep theirs as detail.
type collector struct {
	outputs map[caseKey]*strings.Builder
	failed  map[string]bool
	cases   []testCase

	errors   int
	failures int
	skips    int
}

func newCollector() *collector {
	return &collector{
		outputs: make(map[caseKey]*strings.Builder),
		failed:  make(map[string]bool),
	}
}

func (c *collector) add(ev Event) {
	key := caseKey{pkg: ev.Package, test: ev.Test}
	switch ev.Action {
	case ActionOutput:
		b, ok := c.outputs[key]
		if !ok {
			b = &strings.Builder{}
			c.outputs[key] = b
		}
		b.WriteString(ev.Output)
	case ActionPass, ActionFail, ActionSkip:
		output := c.takeOutput(key)
		if ev.Test == "" {
			// package result; a failure without failing tests is an error
			if ev.Action == ActionFail {
				c.packageError(ev.Package, output)
			}
			return
		}
		c.testDone(ev, output)
	}
}

func (c *collector) testDone(ev Event, output string) {
	tc := testCase{
		Method: ev.Test,
		Name:   ev.Package + ":" + ev.Test,
		Time:   formatSeconds(ev.Elapsed),
	}
	switch ev.Action {
	case ActionFail:
		c.failures++
		c.failed[ev.Package] = true
		tc.Failure = &detail{Text: output}
	case ActionSkip:
		c.skips++
		tc.Skipped = &detail{Text: output}
	}
	c.cases = append(c.cases, tc)
}

// packageError records a package that failed outside of any test, for
// example one that did not build. It is recorded once per package.
func (c *collector) packageError(pkg, output string) {
	if c.failed[pkg] {
		return
	}
	c.failed[pkg] = true
	c.errors++
	c.cases = append(c.cases, testCase{
		Name:  pkg,
		Time:  formatSeconds(0),
		Error: &detail{Text: output},
	})
}

func (c *collector) takeOutput(key caseKey) string {
	b, ok := c.outputs[key]
	if !ok {
		return ""
	}
	delete(c.outputs, key)
	return b.String()
}

func (c *collector) suite(elapsed time.Duration) testSuite {
	return testSuite{
		Errors:   c.errors,
		Failures: c.failures,
		Skips:    c.skips,
		Tests:    len(c.cases),
		Time:     formatSeconds(elapsed.Seconds()),
		Cases:    c.cases,
	}
}

func writeSuite(w io.Writer, s testSuite) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(s); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
