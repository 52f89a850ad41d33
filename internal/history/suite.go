package history

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

const maxSuiteLength = 64

var validSuite = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// SuiteKey generates a deterministic suite name from a test command.
// The format is "gocovrun-<hash>" where hash is the SHA256 of the joined
// command, truncated so the key fits the suite column.
func SuiteKey(command []string) string {
	// null bytes keep ["go", "test ./..."] apart from ["go test", "./..."]
	joined := strings.Join(command, "\x00")
	hash := sha256.Sum256([]byte(joined))

	key := "gocovrun-" + hex.EncodeToString(hash[:])
	if len(key) > maxSuiteLength {
		key = key[:maxSuiteLength]
	}
	return key
}

func ValidateSuite(suite string) error {
	if suite == "" {
		return errors.New("suite is required")
	}
	if len(suite) > maxSuiteLength {
		return errors.New("suite name too long")
	}
	if !validSuite.MatchString(suite) {
		return errors.New("suite name contains invalid characters")
	}
	return nil
}
