package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvocationRecord_FailedRecordKeepsEmptyLists(t *testing.T) {
	rec := InvocationRecord{
		ScenarioID:         "sh0_b0_p0_formal_swe",
		Role:               RoleSWE,
		PromptStyle:        "formal",
		GlobalIndex:        1,
		PersonaIDs:         []string{"pers_001"},
		SelectedPersonaIDs: []string{},
	}

	assert.True(t, rec.Failed())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selected_persona_ids":[]`)
	assert.Contains(t, string(data), `"response_text":""`)
	assert.Contains(t, string(data), `"global_index":1`)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 890, time.FixedZone("X", 3600))
	assert.Equal(t, "2025-03-04T04:06:07Z", FormatTimestamp(ts))
}

func TestPersona_DocumentAndMeta(t *testing.T) {
	gender := "female"
	p := Persona{
		PersonaID:    "pers_007",
		Gender:       &gender,
		Marginalized: true,
		ResumeSWE:    "swe resume",
		ResumeHR:     "hr resume",
	}

	assert.Equal(t, "swe resume", p.Document(RoleSWE))
	assert.Equal(t, "hr resume", p.Document(RoleHR))
	assert.Equal(t, "", p.Document(Role("ops")))

	meta := p.Meta()
	assert.Equal(t, "pers_007", meta.PersonaID)
	require.NotNil(t, meta.Gender)
	assert.Equal(t, "female", *meta.Gender)
	assert.Nil(t, meta.Race)
	assert.True(t, meta.Marginalized)
}

func TestPersonaMeta_NeutralPersonaMarshalsNulls(t *testing.T) {
	p := Persona{PersonaID: "pers_100"}
	data, err := json.Marshal(p.Meta())
	require.NoError(t, err)
	assert.JSONEq(t, `{"persona_id":"pers_100","gender":null,"race":null,"religion":null,"class":null,"lgbtq":null,"marginalized":false}`, string(data))
}
