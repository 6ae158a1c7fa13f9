package ai

import (
	"context"
	"strings"
)

// Stop words to filter out when deriving key elements from text
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "i": true, "me": true, "my": true, "we": true,
	"our": true, "can": true, "what": true, "how": true, "please": true,
	"or": true, "if": true, "into": true, "about": true, "any": true,
}

// TokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words.
func TokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// KeywordExtractor derives key elements from the words of a text.
// It needs no model and never fails.
type KeywordExtractor struct {
	max int
}

var _ KeyElementExtractor = (*KeywordExtractor)(nil)

// NewKeywordExtractor returns an extractor keeping at most max distinct words.
// A max of zero or less keeps every word.
func NewKeywordExtractor(max int) *KeywordExtractor {
	return &KeywordExtractor{max: max}
}

// ExtractKeyElements returns the distinct non-stop words of text in order of appearance.
func (k *KeywordExtractor) ExtractKeyElements(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := TokenizeAndFilter(text)
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if k.max > 0 && len(out) == k.max {
			break
		}
	}
	return out, nil
}
