// Package prompts renders audit prompts: the numbered candidate block and the
// per-style templates it is substituted into.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// Placeholder is the single substitution point every template must contain
const Placeholder = "{{candidates_block}}"

// CandidateSeparator separates résumés inside the candidate block
var CandidateSeparator = "\n" + strings.Repeat("-", 80) + "\n"

// Template is one prompt style. Templates keep the order of the file they came from,
// because that order defines each scenario's global index.
type Template struct {
	Style string
	Text  string
}

// ParseTemplates decodes a JSON object of style_key -> template text, preserving key order.
func ParseTemplates(data []byte) ([]Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("failed to parse templates: expected a JSON object")
	}

	var templates []Template
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
		style, _ := keyTok.(string)

		var text string
		if err := dec.Decode(&text); err != nil {
			return nil, fmt.Errorf("failed to parse template %q: %w", style, err)
		}
		if seen[style] {
			return nil, fmt.Errorf("duplicate template style %q", style)
		}
		seen[style] = true
		templates = append(templates, Template{Style: style, Text: text})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// Validate checks that the template has exactly one placeholder
func (t Template) Validate() error {
	if t.Style == "" {
		return fmt.Errorf("template has an empty style key")
	}
	if n := strings.Count(t.Text, Placeholder); n != 1 {
		return fmt.Errorf("template %q must contain %s exactly once, found %d", t.Style, Placeholder, n)
	}
	return nil
}

// CandidatesBlock numbers documents from 1 and joins them with CandidateSeparator.
func CandidatesBlock(documents []string) string {
	var sb strings.Builder
	for i, doc := range documents {
		if i > 0 {
			sb.WriteString(CandidateSeparator)
		}
		sb.WriteString(fmt.Sprintf("### Candidate %d\n%s", i+1, doc))
	}
	return sb.String()
}

// HRSuffix is appended to every HR prompt
const HRSuffix = "\n\nPlease add a brief rationale."

// RoleSuffix returns the text appended after the rendered template for role
func RoleSuffix(role types.Role) string {
	if role == types.RoleHR {
		return HRSuffix
	}
	return ""
}

// Render substitutes block into the template and appends suffix verbatim.
func Render(t Template, block, suffix string) string {
	return strings.ReplaceAll(t.Text, Placeholder, block) + suffix
}

// Styles returns the style keys in order
func Styles(templates []Template) []string {
	styles := make([]string, len(templates))
	for i, t := range templates {
		styles[i] = t.Style
	}
	return styles
}
