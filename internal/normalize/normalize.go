// Package normalize provides utilities for normalizing and sanitizing user input.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Username returns the canonical form used for uniqueness checks.
// Input is NFC-normalized, trimmed and case-folded so that "Ana", "ANA"
// and "ana" collide.
//
//	"  Ana  " -> "ana"
//	"STRASSE" -> "strasse"
//	"Straße" -> "strasse"
func Username(raw string) string {
	s := norm.NFC.String(sanitizeString(raw))
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// DisplayName trims a free-form name and collapses inner whitespace runs to
// single spaces. Case is preserved.
func DisplayName(raw string) string {
	s := norm.NFC.String(sanitizeString(raw))
	return strings.Join(strings.Fields(s), " ")
}

// Timezone trims an IANA zone name. Validity is checked by the caller.
func Timezone(raw string) string {
	return strings.TrimSpace(sanitizeString(raw))
}

// sanitizeString drops null bytes and other control characters, which can
// cause issues in keys and JSON payloads.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return -1
		}
		return r
	}, s)
}
