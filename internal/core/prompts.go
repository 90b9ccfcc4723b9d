package core

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/kiraleos/assignment-helper/internal/store"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// searchContextChars bounds how much assignment text goes into the search-query prompt.
const searchContextChars = 500

// Policy holds the prompt templates and behavioral rules of the tutor.
type Policy struct {
	System              string                             `yaml:"system"`
	Greeting            string                             `yaml:"greeting"`
	ContinuationContext string                             `yaml:"continuation_context"`
	SearchQuery         string                             `yaml:"search_query"`
	Rules               map[string]string                  `yaml:"rules"`
	Modes               map[store.InteractionType][]string `yaml:"modes"`

	systemTmpl       *template.Template
	greetingTmpl     *template.Template
	continuationTmpl *template.Template
	searchQueryTmpl  *template.Template
}

// LoadPolicy reads the policy from path, or the embedded default when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	data := defaultPolicyYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	for _, mode := range []store.InteractionType{store.InteractionAIResponse, store.InteractionUserQuestion} {
		rules, ok := p.Modes[mode]
		if !ok {
			return nil, fmt.Errorf("policy has no rule list for mode %q", mode)
		}
		for _, name := range rules {
			if _, ok := p.Rules[name]; !ok {
				return nil, fmt.Errorf("mode %q references unknown rule %q", mode, name)
			}
		}
	}
	if _, ok := p.Rules["full_solution_now"]; !ok {
		return nil, fmt.Errorf("policy is missing the full_solution_now rule")
	}

	var err error
	if p.systemTmpl, err = template.New("system").Parse(p.System); err != nil {
		return nil, fmt.Errorf("failed to parse system template: %w", err)
	}
	if p.greetingTmpl, err = template.New("greeting").Parse(p.Greeting); err != nil {
		return nil, fmt.Errorf("failed to parse greeting template: %w", err)
	}
	if p.continuationTmpl, err = template.New("continuation").Parse(p.ContinuationContext); err != nil {
		return nil, fmt.Errorf("failed to parse continuation template: %w", err)
	}
	if p.searchQueryTmpl, err = template.New("search_query").Parse(p.SearchQuery); err != nil {
		return nil, fmt.Errorf("failed to parse search query template: %w", err)
	}
	return &p, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// GreetingMessage renders the canned welcome for an assignment.
func (p *Policy) GreetingMessage(title string) (string, error) {
	return render(p.greetingTmpl, struct{ Title string }{title})
}

// SystemPrompt assembles the system instruction for one interaction mode.
// previousAnswer is only used by the continuation mode.
func (p *Policy) SystemPrompt(mode store.InteractionType, assignment *Assignment, fullSolution bool, previousAnswer string) (string, error) {
	var sb strings.Builder

	header, err := render(p.systemTmpl, struct{ Title, FullText string }{assignment.Title, assignment.FullText})
	if err != nil {
		return "", err
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	for _, name := range p.Modes[mode] {
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(p.Rules[name]))
		sb.WriteString("\n")
	}
	if fullSolution {
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(p.Rules["full_solution_now"]))
		sb.WriteString("\n")
	}

	if mode == store.InteractionUserQuestion {
		cont, err := render(p.continuationTmpl, struct{ PreviousAnswer string }{previousAnswer})
		if err != nil {
			return "", err
		}
		sb.WriteString("\n")
		sb.WriteString(cont)
	}

	return strings.TrimSpace(sb.String()), nil
}

// SearchQueryPrompt renders the prompt used to derive a video search query.
func (p *Policy) SearchQueryPrompt(question, answer, assignmentText string) (string, error) {
	excerpt := []rune(assignmentText)
	if len(excerpt) > searchContextChars {
		excerpt = excerpt[:searchContextChars]
	}
	return render(p.searchQueryTmpl, struct{ Question, Answer, Context string }{question, answer, string(excerpt)})
}
