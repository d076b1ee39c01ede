// Package scenario builds the ordered sequence of work units (variant × prompt style)
// consumed by the runner.
package scenario

import (
	"fmt"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/prompts"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// Scenario is one unit of work. Scenarios are regenerated identically on every run and
// never persisted themselves.
type Scenario struct {
	VariantID   string
	PersonaIDs  []string
	Template    prompts.Template
	Role        types.Role
	GlobalIndex int // 1-based, variant-major, style-minor
}

// ID returns the human-readable composite key <variant>_<style>_<role>
func (s Scenario) ID() string {
	return fmt.Sprintf("%s_%s_%s", s.VariantID, s.Template.Style, s.Role)
}

// StyleKey returns the prompt style of the scenario
func (s Scenario) StyleKey() string {
	return s.Template.Style
}

// Feed is the fixed total order of scenarios for one role
type Feed struct {
	variants  []types.BatchVariant
	templates []prompts.Template
	role      types.Role
	limit     int // number of variants to emit; 0 means all
}

// NewFeed validates inputs and returns the feed over every variant and style.
func NewFeed(variants []types.BatchVariant, templates []prompts.Template, role types.Role) (*Feed, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("no batch variants")
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no prompt templates for role %s", role)
	}
	for _, v := range variants {
		if len(v.PersonaIDs) != types.VariantSize {
			return nil, fmt.Errorf("variant %s has %d candidates, want %d", v.VariantID, len(v.PersonaIDs), types.VariantSize)
		}
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	return &Feed{variants: variants, templates: templates, role: role}, nil
}

// Limit returns a copy of the feed that stops after the first k variants.
// Global indices keep referring to the full ordering. k <= 0 removes the limit.
func (f *Feed) Limit(k int) *Feed {
	limited := *f
	if k < 0 {
		k = 0
	}
	limited.limit = k
	return &limited
}

// Total is the number of scenarios in the full ordering, regardless of any limit
func (f *Feed) Total() int {
	return len(f.variants) * len(f.templates)
}

// Role returns the feed's role
func (f *Feed) Role() types.Role {
	return f.role
}

// Styles returns the number of prompt styles per variant
func (f *Feed) Styles() int {
	return len(f.templates)
}

// Limited reports whether the feed stops before the full ordering ends
func (f *Feed) Limited() bool {
	return f.limit > 0 && f.limit < len(f.variants)
}

// Variants returns the variants the feed will emit
func (f *Feed) Variants() []types.BatchVariant {
	if f.Limited() {
		return f.variants[:f.limit]
	}
	return f.variants
}

// GlobalIndex computes the 1-based index of (variant vi, style si), both 1-based
func (f *Feed) GlobalIndex(vi, si int) int {
	return (vi-1)*len(f.templates) + si
}

// Scenarios returns every emitted scenario in order
func (f *Feed) Scenarios() []Scenario {
	variants := f.Variants()
	out := make([]Scenario, 0, len(variants)*len(f.templates))
	for vi, v := range variants {
		for si, t := range f.templates {
			out = append(out, Scenario{
				VariantID:   v.VariantID,
				PersonaIDs:  v.PersonaIDs,
				Template:    t,
				Role:        f.role,
				GlobalIndex: f.GlobalIndex(vi+1, si+1),
			})
		}
	}
	return out
}
