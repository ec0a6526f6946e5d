package file

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeTitle turns a human audio title into a storage-safe name:
// lowercase, accents folded (including the Vietnamese đ), spaces replaced
// with dashes and everything outside [a-z0-9-_] dropped.
// "Người đàn ông" becomes "nguoi-dan-ong".
func NormalizeTitle(title string) string {
	value := strings.ToLower(strings.TrimSpace(title))
	value = strings.ReplaceAll(value, "đ", "d")

	if folded, _, err := transform.String(stripAccents, value); err == nil {
		value = folded
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return b.String()
}
