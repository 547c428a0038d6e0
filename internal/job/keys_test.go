package job_test

import (
	"regexp"
	"testing"

	"github.com/book-expert/pollypress/internal/job"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInputKey(t *testing.T) {
	t.Parallel()

	fileID := uuid.NewString()
	pattern := regexp.MustCompile(`^input/[0-9a-f-]{36}\.txt$`)

	key := job.InputKey(fileID, "notes.txt")

	assert.Regexp(t, pattern, key)
	assert.Equal(t, "input/"+fileID+".txt", key)
	assert.Equal(t, "input/"+fileID+".docx", job.InputKey(fileID, "my.report.docx"))
	assert.Equal(t, "input/"+fileID+".README", job.InputKey(fileID, "README"))
}

func TestOutputKey(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"input/abc-123.txt":      "output/abc-123.mp3",
		"input/abc-123.docx":     "output/abc-123.mp3",
		"input/nested/abc.txt":   "output/abc.mp3",
		"abc-123.txt":            "output/abc-123.mp3",
		"input/abc.tar.txt":      "output/abc.mp3",
		"input/no-extension-key": "output/no-extension-key.mp3",
	}

	for input, want := range tests {
		assert.Equal(t, want, job.OutputKey(input), input)
		assert.Equal(t, job.OutputKey(input), job.OutputKey(input), "derivation must be pure")
	}
}

func TestDownloadKey(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"input/abc-123.txt":  "output/abc-123.mp3",
		"input/abc-123.docx": "output/abc-123.mp3",
		"input/abc":          "output/abc",
		"other/abc.txt":      "other/abc.mp3",
		"input/abc.":         "output/abc.",
	}

	for fileKey, want := range tests {
		assert.Equal(t, want, job.DownloadKey(fileKey), fileKey)
	}
}

func TestDownloadKeyMatchesOutputKeyForUploads(t *testing.T) {
	t.Parallel()

	fileKey := job.InputKey(uuid.NewString(), "notes.txt")

	assert.Equal(t, job.OutputKey(fileKey), job.DownloadKey(fileKey))
}
