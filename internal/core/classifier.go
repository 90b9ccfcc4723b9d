package core

import (
	"strings"
	"unicode"

	"github.com/kiraleos/assignment-helper/internal/utils"
)

const (
	// MaxGreetingTokens is the longest message still treated as a bare greeting.
	MaxGreetingTokens = 3
	// MinVideoAnswerLength is the shortest answer (in characters) that can earn videos.
	MinVideoAnswerLength = 150
)

var greetingWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hola": {}, "greetings": {}, "sup": {}, "yo": {},
	"assalamualaikum": {}, "salam": {},
}

var greetingPhrases = []string{
	"good morning", "good afternoon", "good evening", "what's up",
}

var fullSolutionPhrases = []string{
	"full solution", "complete solution", "full answer", "solve it for me",
	"show me the solution", "give me the answer", "just tell me", "i give up",
	"show me how to solve", "solve this", "full solve", "complete solve",
	// romanized Bengali
	"puro solution", "pura solution", "solve kore dao", "uttor dao", "answer ta dao",
	"full solve kore dao",
}

var instructionalWords = []string{
	"step", "example", "formula", "equation", "therefore", "however", "because",
	"first", "second", "finally", "calculate", "solve", "explain", "method",
	"concept", "definition", "theorem", "process",
}

// normalize lowercases text, folds curly apostrophes and turns everything that
// is not a letter, digit or apostrophe into a single space.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, "’", "'")
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

// IsGreeting reports whether text is a short, greeting-only message.
func IsGreeting(text string) bool {
	if utils.CountTokens(text) > MaxGreetingTokens {
		return false
	}
	norm := normalize(text)
	if norm == "" {
		return false
	}
	for _, word := range strings.Fields(norm) {
		if _, ok := greetingWords[word]; ok {
			return true
		}
	}
	padded := " " + norm + " "
	for _, phrase := range greetingPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}

// IsRequestingFullSolution reports whether the student explicitly asks for a worked answer.
func IsRequestingFullSolution(text string) bool {
	norm := normalize(text)
	if norm == "" {
		return false
	}
	for _, phrase := range fullSolutionPhrases {
		if strings.Contains(norm, phrase) {
			return true
		}
	}
	return false
}

// ShouldSuggestVideos decides whether a generated answer is substantial and
// instructional enough to be worth supplementing with videos.
func ShouldSuggestVideos(question, answer string) bool {
	if IsGreeting(question) {
		return false
	}
	answer = strings.TrimSpace(answer)
	if len([]rune(answer)) < MinVideoAnswerLength {
		return false
	}
	lower := strings.ToLower(answer)
	for _, word := range instructionalWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
