package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

func TestValidateQueueName_Valid(t *testing.T) {
	validNames := []string{
		"default",
		"high-priority",
		"emails_v2",
		"queue with spaces",
		"tenant/42",
		"émails",
		strings.Repeat("q", MaxQueueNameLength),
	}

	for _, name := range validNames {
		err := ValidateQueueName(name)
		assert.NoError(t, err, "Expected %q to be valid", name)
	}
}

func TestValidateQueueName_Invalid(t *testing.T) {
	assert.ErrorIs(t, ValidateQueueName(""), core.ErrInvalidQueueName)
	assert.ErrorIs(t, ValidateQueueName("a\x00b"), core.ErrInvalidQueueName)
	assert.ErrorIs(t, ValidateQueueName(strings.Repeat("q", MaxQueueNameLength+1)), core.ErrQueueNameTooLong)
}

func TestValidateQueueName_CountsBytes(t *testing.T) {
	// 128 two-byte runes is 256 bytes.
	name := strings.Repeat("é", 128)
	assert.ErrorIs(t, ValidateQueueName(name), core.ErrQueueNameTooLong)
}

func TestValidateTableName(t *testing.T) {
	valid := []string{
		"__pg_queue_jobs",
		"jobs",
		"public.jobs",
		"Jobs2",
		strings.Repeat("t", MaxTableNameLength),
		strings.Repeat("s", MaxTableNameLength) + "." + strings.Repeat("t", MaxTableNameLength),
		"queue_schema." + strings.Repeat("t", 60),
	}
	for _, name := range valid {
		assert.NoError(t, ValidateTableName(name), "Expected %q to be valid", name)
	}

	invalid := []string{
		"",
		"2jobs",
		"jobs; DROP TABLE users",
		"jobs\"",
		"a.b.c",
		"jobs-table",
		strings.Repeat("t", MaxTableNameLength+1),
		"public." + strings.Repeat("t", MaxTableNameLength+1),
		strings.Repeat("s", MaxTableNameLength+1) + ".jobs",
	}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateTableName(name), core.ErrInvalidTableName, "Expected %q to be invalid", name)
	}
}

func TestValidatePollInterval(t *testing.T) {
	assert.NoError(t, ValidatePollInterval(MinPollInterval))
	assert.NoError(t, ValidatePollInterval(time.Second))
	assert.ErrorIs(t, ValidatePollInterval(99*time.Millisecond), core.ErrPollIntervalTooShort)
	assert.ErrorIs(t, ValidatePollInterval(0), core.ErrPollIntervalTooShort)
}

func TestValidatePayloadSize(t *testing.T) {
	assert.NoError(t, ValidatePayloadSize([]byte(`{}`)))
	assert.NoError(t, ValidatePayloadSize(make([]byte, MaxPayloadSize)))
	assert.ErrorIs(t, ValidatePayloadSize(make([]byte, MaxPayloadSize+1)), core.ErrPayloadTooLarge)
}

func TestClampConcurrency(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{10, 10},
		{MaxConcurrency, MaxConcurrency},
		{MaxConcurrency + 1, MaxConcurrency},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClampConcurrency(tt.input))
	}
}
