package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// DisplayName derives the UI label for a history file by stripping the
// chat_ prefix and the .json suffix. Different filenames can map to the same label.
func DisplayName(filename string) string {
	name := strings.TrimSuffix(filename, historyExt)
	return strings.TrimPrefix(name, historyPrefix)
}

// SanitizeName keeps letters, digits, '_' and '-', turns whitespace into '_'
// and drops everything else.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	return b.String()
}

// HistoryFilenameForDocuments derives a deterministic history filename from
// uploaded document names, so the same document set always maps to the same file.
// Each name contributes its base up to the first '.'.
func HistoryFilenameForDocuments(names []string) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		base, _, _ := strings.Cut(filepath.Base(name), ".")
		parts = append(parts, SanitizeName(base))
	}
	return historyPrefix + strings.Join(parts, "_") + historyExt
}

// ValidateFilename checks that filename is a bare .json name inside the store directory
func ValidateFilename(filename string) error {
	switch {
	case filename == "",
		filename != filepath.Base(filename),
		strings.ContainsAny(filename, `/\`),
		filename == historyExt,
		!strings.HasSuffix(filename, historyExt):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}
