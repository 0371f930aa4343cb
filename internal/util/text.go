package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"donorprep/internal"
)

var (
	reNoAnswer    = regexp.MustCompile(`(?i)^(?:aucun|(?:rien|pas|non)(?:\s|$)|nan$|r\s*a\s*s\s*$)`)
	reParenthesis = regexp.MustCompile(`\(.*`)
)

// RemoveDiacritics decomposes s and drops combining marks. The result is
// left decomposed so that applying it twice is a no-op.
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// CleanName canonicalizes a free-text categorical answer. Answers meaning
// "nothing", "none" or "not specified" collapse to internal.NoAnswer.
func CleanName(s string) string {
	value := Capitalize(strings.TrimSpace(RemoveDiacritics(s)))
	if reNoAnswer.MatchString(value) {
		return internal.NoAnswer
	}
	return strings.TrimSpace(reParenthesis.ReplaceAllString(value, ""))
}

func IsMissing(s string) bool {
	v := strings.TrimSpace(s)
	return v == "" || v == internal.MissingValue
}
