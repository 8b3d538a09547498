// Package nlq implements the natural-language query pipeline: normalization,
// entity extraction, intent classification, SQL generation, confidence
// scoring, and chart suggestion. All stages are deterministic; the same
// question with the same context always produces the same output.
package nlq

import (
	"strings"
	"unicode"
)

// NormalizeQuery canonicalizes raw question text before extraction.
// Lowercases, strips punctuation (hyphens between word characters survive,
// so "dine-in" stays one token), and collapses whitespace runs. Entity
// positions throughout the pipeline refer to offsets in this normalized
// string.
func NormalizeQuery(raw string) string {
	lower := strings.ToLower(raw)
	runes := []rune(lower)

	var b strings.Builder
	b.Grow(len(lower))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' && i > 0 && i < len(runes)-1 &&
			isWordRune(runes[i-1]) && isWordRune(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// token is a word in the normalized query with its rune offsets.
type token struct {
	Text  string
	Start int
	End   int // exclusive
}

// tokenize splits normalized text into tokens with rune offsets. Assumes the
// input is already normalized (single spaces, no leading/trailing space).
func tokenize(normalized string) []token {
	var tokens []token
	runes := []rune(normalized)
	start := -1
	for i, r := range runes {
		if r == ' ' {
			if start >= 0 {
				tokens = append(tokens, token{
					Text:  string(runes[start:i]),
					Start: start,
					End:   i,
				})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{
			Text:  string(runes[start:]),
			Start: start,
			End:   len(runes),
		})
	}
	return tokens
}
