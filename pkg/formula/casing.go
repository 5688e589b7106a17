package formula

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers carry state, so each call builds its own.

// Upper uppercases s with full Unicode case mapping ("ß" becomes "SS").
func Upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// Lower lowercases s with full Unicode case mapping.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Title capitalizes every run of cased letters and lowercases the rest of
// the run. Any uncased rune (digit, apostrophe, space, punctuation) starts a
// new word, so "x900abc o'neil" becomes "X900Abc O'Neil".
func Title(s string) string {
	caser := cases.Title(language.Und)

	var b strings.Builder
	b.Grow(len(s))
	start := -1
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isCased(r) {
			if start < 0 {
				start = i
			}
		} else {
			if start >= 0 {
				b.WriteString(caser.String(s[start:i]))
				start = -1
			}
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r) ||
		unicode.In(r, unicode.Other_Lowercase, unicode.Other_Uppercase)
}
