//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// TimestampLayout is the UTC timestamp format written to run logs
const TimestampLayout = "2006-01-02T15:04:05Z"

// InvocationRecord is the persisted, immutable result of one scenario.
// A failed invocation is still recorded, with empty ResponseText and SelectedPersonaIDs.
type InvocationRecord struct {
	ScenarioID         string        `json:"scenario_id"`
	Role               Role          `json:"role"`
	PromptStyle        string        `json:"prompt_style"`
	GlobalIndex        int           `json:"global_index"`
	RunID              string        `json:"run_id,omitempty"`
	PersonaIDs         []string      `json:"persona_ids"`
	PersonaMeta        []PersonaMeta `json:"persona_meta"`
	PromptText         string        `json:"prompt_text"`
	ResponseText       string        `json:"response_text"`
	RationaleText      string        `json:"rationale_text"`
	SelectionLine      string        `json:"selection_line"`
	SelectedPersonaIDs []string      `json:"selected_persona_ids"`
	TimestampUTC       string        `json:"timestamp_utc"`
}

// Failed reports whether the upstream call produced no usable response
func (r *InvocationRecord) Failed() bool {
	return r.ResponseText == ""
}

// FormatTimestamp renders t in the run-log timestamp format
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
