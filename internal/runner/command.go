package runner

import (
	"path/filepath"
	"strings"
)

// IsGoTest reports whether command is a go test invocation.
func IsGoTest(command []string) bool {
	if len(command) < 2 || command[1] != "test" {
		return false
	}
	return strings.TrimSuffix(filepath.Base(command[0]), ".exe") == "go"
}

// InsertTestFlags returns a copy of a go test command with flags placed
// right after the test verb, ahead of packages and test binary flags.
func InsertTestFlags(command []string, flags ...string) []string {
	out := make([]string, 0, len(command)+len(flags))
	out = append(out, command[:2]...)
	out = append(out, flags...)
	return append(out, command[2:]...)
}
