package utils

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {}, "and": {},
	"or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {}, "of": {}, "as": {},
	"by": {}, "this": {}, "that": {}, "what": {}, "how": {}, "does": {}, "your": {},
	"have": {}, "from": {}, "then": {}, "there": {}, "they": {}, "will": {}, "would": {},
}

// Truncate shortens text to maxRunes runes, appending "..." when something was cut.
func Truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

// ExtractKeywords returns up to max of the most frequent non stop-words longer
// than three letters. Ties keep first-seen order.
func ExtractKeywords(text string, max int) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)

	counts := make(map[string]int)
	var order []string
	for _, word := range strings.Fields(cleaned) {
		if len([]rune(word)) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}

// CountTokens counts whitespace-separated tokens.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
