package slideplan

import (
	"strings"
	"unicode"
)

// EstimateTokens gives a rough token count. Han, Hiragana and Katakana runes count
// one token each; other text counts ~1.33 tokens per whitespace-separated word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	cjk := 0
	var rest strings.Builder
	for _, r := range text {
		if isCJK(r) {
			cjk++
			rest.WriteByte(' ')
			continue
		}
		rest.WriteRune(r)
	}
	words := len(strings.Fields(rest.String()))
	tokens := cjk + int(float64(words)*1.33)
	if tokens < 1 && strings.TrimSpace(text) != "" {
		tokens = 1
	}
	return tokens
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
}
