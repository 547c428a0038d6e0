package job

import (
	"path"
	"strings"
	"unicode/utf8"
)

// Object layout shared by the API, the receiver and the processor.
const (
	InputPrefix      = "input/"
	OutputPrefix     = "output/"
	OutputExtension  = ".mp3"
	AudioContentType = "audio/mpeg"
)

// MaxTextLength is the number of characters a single synthesis call accepts.
const MaxTextLength = 3000

// FileExtension returns the text after the last dot of name, or name itself
// when it has no dot.
func FileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name
	}

	return name[idx+1:]
}

// InputKey derives the storage key an upload with the given id and file name is written to.
func InputKey(fileID, fileName string) string {
	return InputPrefix + fileID + "." + FileExtension(fileName)
}

// FileID returns the base name of key up to its first dot.
func FileID(key string) string {
	base := path.Base(key)
	if key == "" || strings.HasSuffix(key, "/") {
		base = ""
	}

	fileID, _, _ := strings.Cut(base, ".")

	return fileID
}

// OutputKey derives where the processor writes the audio for an input key.
func OutputKey(inputKey string) string {
	return OutputPrefix + FileID(inputKey) + OutputExtension
}

// DownloadKey maps the input key known to a client to the output key it
// should look up: the input/ prefix becomes output/ and the final extension
// becomes .mp3.
func DownloadKey(fileKey string) string {
	key := fileKey
	if strings.HasPrefix(key, InputPrefix) {
		key = OutputPrefix + strings.TrimPrefix(key, InputPrefix)
	}

	idx := strings.LastIndex(key, ".")
	if idx >= 0 && idx < len(key)-1 {
		key = key[:idx] + OutputExtension
	}

	return key
}

// Truncate limits text to MaxTextLength characters and reports whether it cut anything.
func Truncate(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text, false
	}

	runes := []rune(text)

	return string(runes[:MaxTextLength]), true
}
