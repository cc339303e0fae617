// Package lexical tokenizes message text into normalized keyword sets and
// provides the fuzzy containment checks shared by every scorer.
package lexical

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// Normalize lower-cases s and strips diacritics so "Preço" and "preco"
// compare equal.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := foldPool.Get().(transform.Transformer)
	defer foldPool.Put(t)

	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokens splits s into normalized alphanumeric tokens in input order.
func Tokens(s string) []string {
	s = Normalize(s)
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
