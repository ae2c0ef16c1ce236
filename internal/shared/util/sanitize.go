package util

import (
	"errors"
	"strings"
)

// maxFileNameRunes bounds names coming off clinic scanner exports, which
// sometimes embed the whole patient header in the file name.
const maxFileNameRunes = 128

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if runes := []rune(s); len(runes) > maxFileNameRunes {
		s = string(runes[:maxFileNameRunes])
	}
	return s, nil
}
