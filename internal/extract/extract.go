// Package extract turns downloaded document bytes into plain text. Extractors
// are registered per file extension so richer formats can be added without
// changing callers.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/pollypress/internal/job"
)

var (
	// ErrUnsupportedFileType is returned for extensions without a registered extractor.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrEmptyText is returned when a document yields no speakable text.
	ErrEmptyText = errors.New("no text content found in file")
)

// Extractor converts the raw bytes of one document format to text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(data []byte) (string, error)

// Extract calls f(data).
func (f ExtractorFunc) Extract(data []byte) (string, error) {
	return f(data)
}

// Registry dispatches extraction by lower-cased file extension.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the plain-text extractor registered for "txt".
func NewRegistry() *Registry {
	registry := &Registry{extractors: make(map[string]Extractor)}
	registry.Register("txt", ExtractorFunc(PlainText))

	return registry
}

// Register binds an extractor to an extension, replacing any previous binding.
func (r *Registry) Register(extension string, extractor Extractor) {
	r.extractors[strings.ToLower(extension)] = extractor
}

// Text extracts the text of the object stored under key. Blank results are
// rejected with ErrEmptyText.
func (r *Registry) Text(data []byte, key string) (string, error) {
	extension := strings.ToLower(job.FileExtension(key))

	extractor, ok := r.extractors[extension]
	if !ok {
		return "", fmt.Errorf("%w: %s. Currently only .txt files are supported", ErrUnsupportedFileType, extension)
	}

	text, err := extractor.Extract(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", key, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	return text, nil
}

// PlainText decodes UTF-8 text, dropping a leading byte order mark. Invalid
// sequences become U+FFFD.
func PlainText(data []byte) (string, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}

	return strings.TrimPrefix(text, "\ufeff"), nil
}
