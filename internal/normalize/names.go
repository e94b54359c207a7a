// Package normalize canonicalizes the free-text values found in meet result
// spreadsheets: swimmer names, birthdates, swim times and the small
// vocabularies used for course, gender, stroke and distance.
//
// Every function here is pure and safe for concurrent use.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Name returns the canonical display form of a name: upper case, trimmed,
// with runs of whitespace collapsed to a single space.
func Name(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// MatchKey folds a name into the key used for index lookups. On top of Name
// it removes diacritics and apostrophes and treats every other punctuation
// mark as a word separator, so "Tan, Mei-Ling" and "TAN MEI LING" share a key.
func MatchKey(s string) string {
	s = foldDiacritics(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToUpper(r)
		case r == '\'' || r == '’' || r == '`':
			return -1
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Words splits a name into its distinct match-key words, preserving the
// order of first appearance.
func Words(s string) []string {
	fields := strings.Fields(MatchKey(s))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// foldDiacritics decomposes s (NFD) and drops the combining marks.
func foldDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
