package marketintel

import (
	"strings"
	"unicode"
)

// normalizeText lower-cases and collapses whitespace.
func normalizeText(parts ...string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.Join(parts, " "))), " ")
}

// hasTerm reports whether term occurs in text without a letter or digit
// directly on either side. text and term must already be lower case.
func hasTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)
		if !isWordByteAt(text, start-1) && !isWordByteAt(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordByteAt(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	r := rune(text[i])
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func hasAnyTerm(text string, terms []string) bool {
	for _, t := range terms {
		if hasTerm(text, t) {
			return true
		}
	}
	return false
}

func countTerms(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if hasTerm(text, t) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
