// Package job_test tests the queue descriptor and key derivation rules.
package job_test

import (
	"strings"
	"testing"
	"time"

	"github.com/book-expert/pollypress/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDescriptor() job.Descriptor {
	return job.NewDescriptor(
		"pollypress-dev-input",
		"input/0b7e9c1e-3f57-4a8e-9c43-2d1f6f6c9a10.txt",
		1024,
		time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC),
	)
}

func TestNewDescriptor_TimestampFormat(t *testing.T) {
	t.Parallel()

	descriptor := validDescriptor()

	assert.Equal(t, "2025-03-14T09:26:53.589Z", descriptor.Timestamp)
	require.NoError(t, descriptor.Validate())
}

func TestDescriptor_EncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	descriptor := validDescriptor()

	body, err := descriptor.Encode()
	require.NoError(t, err)

	decoded, err := job.Decode(body)
	require.NoError(t, err)

	assert.Equal(t, descriptor, decoded)
}

func TestDescriptor_Validate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(d *job.Descriptor)
		field  string
	}{
		{name: "missing bucket", mutate: func(d *job.Descriptor) { d.Bucket = "" }, field: "bucket"},
		{name: "missing key", mutate: func(d *job.Descriptor) { d.Key = "" }, field: "key"},
		{name: "zero size", mutate: func(d *job.Descriptor) { d.FileSize = 0 }, field: "fileSize"},
		{name: "negative size", mutate: func(d *job.Descriptor) { d.FileSize = -5 }, field: "fileSize"},
		{name: "missing timestamp", mutate: func(d *job.Descriptor) { d.Timestamp = "" }, field: "timestamp"},
		{name: "bad timestamp", mutate: func(d *job.Descriptor) { d.Timestamp = "yesterday" }, field: "timestamp"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			descriptor := validDescriptor()
			testCase.mutate(&descriptor)

			err := descriptor.Validate()
			require.ErrorIs(t, err, job.ErrInvalidDescriptor)
			assert.Contains(t, err.Error(), testCase.field)

			_, encodeErr := descriptor.Encode()
			require.ErrorIs(t, encodeErr, job.ErrInvalidDescriptor)
		})
	}
}

func TestDecode_RejectsMalformedBodies(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"not json":         `{"bucket":`,
		"missing size":     `{"bucket":"b","key":"input/a.txt","timestamp":"2025-01-01T00:00:00.000Z"}`,
		"fractional size":  `{"bucket":"b","key":"input/a.txt","fileSize":1.5,"timestamp":"2025-01-01T00:00:00Z"}`,
		"string size":      `{"bucket":"b","key":"input/a.txt","fileSize":"10","timestamp":"2025-01-01T00:00:00Z"}`,
		"empty object":     `{}`,
		"date only stamp":  `{"bucket":"b","key":"input/a.txt","fileSize":10,"timestamp":"2025-01-01"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := job.Decode([]byte(body))
			require.ErrorIs(t, err, job.ErrInvalidDescriptor)
		})
	}
}

func TestDecode_AcceptsSecondPrecisionTimestamp(t *testing.T) {
	t.Parallel()

	body := `{"bucket":"b","key":"input/a.txt","fileSize":10,"timestamp":"2025-01-01T00:00:00Z","extra":true}`

	descriptor, err := job.Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, int64(10), descriptor.FileSize)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("a", job.MaxTextLength)
	text, truncated := job.Truncate(short)
	assert.False(t, truncated)
	assert.Equal(t, short, text)

	long := strings.Repeat("b", job.MaxTextLength+250)
	text, truncated = job.Truncate(long)
	assert.True(t, truncated)
	assert.Len(t, text, job.MaxTextLength)

	multiByte := strings.Repeat("é", job.MaxTextLength+1)
	text, truncated = job.Truncate(multiByte)
	assert.True(t, truncated)
	assert.Equal(t, job.MaxTextLength, len([]rune(text)))
}
