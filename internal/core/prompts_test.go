package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kiraleos/assignment-helper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyLoads(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.NotEmpty(t, p.Rules)
	assert.Contains(t, p.Modes, store.InteractionAIResponse)
	assert.Contains(t, p.Modes, store.InteractionUserQuestion)
}

func TestGreetingMessageNamesAssignment(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)

	msg, err := p.GreetingMessage("Algebra HW")
	require.NoError(t, err)
	assert.Contains(t, msg, `"Algebra HW"`)
}

func TestSystemPromptAIResponse(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	a := &Assignment{Title: "Algebra HW", FullText: "Q1: solve x+2=5"}

	hint, err := p.SystemPrompt(store.InteractionAIResponse, a, false, "")
	require.NoError(t, err)
	assert.Contains(t, hint, "Algebra HW")
	assert.Contains(t, hint, "Q1: solve x+2=5")
	assert.Contains(t, hint, "guided hints")
	assert.Contains(t, hint, "LaTeX")
	assert.NotContains(t, hint, "explicitly asked for the full solution")
	assert.NotContains(t, hint, "PREVIOUS ANSWER")

	full, err := p.SystemPrompt(store.InteractionAIResponse, a, true, "")
	require.NoError(t, err)
	assert.Contains(t, full, "explicitly asked for the full solution")
}

func TestSystemPromptContinuationEmbedsPreviousAnswer(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	a := &Assignment{Title: "Algebra HW", FullText: "Q1: solve x+2=5"}

	prompt, err := p.SystemPrompt(store.InteractionUserQuestion, a, false, "Try subtracting 2 from both sides.")
	require.NoError(t, err)
	assert.Contains(t, prompt, "PREVIOUS ANSWER")
	assert.Contains(t, prompt, "Try subtracting 2 from both sides.")
	assert.Contains(t, prompt, "follow-up")
}

func TestSearchQueryPromptTrimsContext(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)

	long := make([]rune, searchContextChars+100)
	for i := range long {
		long[i] = 'z'
	}
	prompt, err := p.SearchQueryPrompt("what is a slope", "slope is rise over run", string(long))
	require.NoError(t, err)
	assert.Contains(t, prompt, "what is a slope")
	assert.Contains(t, prompt, "slope is rise over run")
	assert.NotContains(t, prompt, string(long))
}

func TestParsePolicyRejectsUnknownRule(t *testing.T) {
	_, err := ParsePolicy([]byte(`
system: "s"
greeting: "g"
continuation_context: "c"
search_query: "q"
rules:
  full_solution_now: "now"
modes:
  ai_response: [missing]
  user_question: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
system: "Tutor for {{.Title}}"
greeting: "Welcome to {{.Title}}"
continuation_context: "Before: {{.PreviousAnswer}}"
search_query: "{{.Question}}"
rules:
  full_solution_now: "solve fully"
  short: "be short"
modes:
  ai_response: [short]
  user_question: [short]
`), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	msg, err := p.GreetingMessage("Physics Lab")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Physics Lab", msg)

	prompt, err := p.SystemPrompt(store.InteractionAIResponse, &Assignment{Title: "Physics Lab"}, false, "")
	require.NoError(t, err)
	assert.Equal(t, "Tutor for Physics Lab\n- be short", prompt)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
