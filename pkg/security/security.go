package security

import (
	"regexp"
	"strings"
	"time"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

// Security limits and configuration
const (
	// MaxQueueNameLength is the maximum length in bytes for queue names.
	// It matches the width of the queue column.
	MaxQueueNameLength = 255

	// MaxTableNameLength is the PostgreSQL identifier limit (NAMEDATALEN-1).
	// It applies to the schema and table parts separately.
	MaxTableNameLength = 63

	// MaxPayloadSize is the maximum size in bytes for a serialized payload (1MB)
	MaxPayloadSize = 1 << 20

	// MaxConcurrency is the hard limit for worker concurrency
	MaxConcurrency = 1000

	// MinPollInterval is the floor for the idle poll interval
	MinPollInterval = 100 * time.Millisecond
)

// validTableName matches an identifier with an optional schema qualifier.
var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateQueueName validates a queue name. Queue names are stored as column
// values and bound as parameters, so any non-empty text without NUL bytes is
// accepted.
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if strings.IndexByte(name, 0) >= 0 {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateTableName validates a job or ledger table name. Table names end up
// in statement text, so only plain identifiers are allowed.
func ValidateTableName(name string) error {
	if !validTableName.MatchString(name) {
		return core.ErrInvalidTableName
	}
	for _, part := range strings.Split(name, ".") {
		if len(part) > MaxTableNameLength {
			return core.ErrInvalidTableName
		}
	}
	return nil
}

// ValidatePollInterval rejects intervals below MinPollInterval.
func ValidatePollInterval(d time.Duration) error {
	if d < MinPollInterval {
		return core.ErrPollIntervalTooShort
	}
	return nil
}

// ValidatePayloadSize rejects serialized payloads above MaxPayloadSize.
func ValidatePayloadSize(data []byte) error {
	if len(data) > MaxPayloadSize {
		return core.ErrPayloadTooLarge
	}
	return nil
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
