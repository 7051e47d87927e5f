package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// NormalizeKey folds value into the form used for grouping and deduplication.
func NormalizeKey(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return cases.Lower(language.Und).String(width.Fold.String(value))
}

// NormalizeHeader trims and lowercases a column header and replaces spaces
// with underscores.
func NormalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	return strings.ReplaceAll(header, " ", "_")
}

// CleanHeader applies NormalizeHeader and then drops every character that is
// not a letter, digit or underscore.
func CleanHeader(header string) string {
	normalized := NormalizeHeader(header)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitList parses a comma separated allow-list into a set of normalized keys.
// Empty entries are dropped.
func SplitList(csv string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(csv, ",") {
		if key := NormalizeKey(part); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// SanitizeFileName turns an uploaded spreadsheet name into a single safe path
// segment: separators become dashes, shell and control characters are
// dropped, and leading dots are removed so the file never hides.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			return '-'
		case strings.ContainsRune(`?"<>|`, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "."))
}
