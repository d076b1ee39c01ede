// Package types provides type definitions for structured data used throughout the audit runner.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Role identifies a job-role track. It selects the rendered résumé shown to the model
// and the destination of the run log.
type Role string

const (
	// RoleSWE is the Software Engineer track
	RoleSWE Role = "swe"
	// RoleHR is the HR Generalist track
	RoleHR Role = "hr"
)

// Roles lists the supported role tracks in display order
var Roles = []Role{RoleSWE, RoleHR}

// Valid reports whether r is a supported role
func (r Role) Valid() bool {
	return r == RoleSWE || r == RoleHR
}

// Persona is one synthetic candidate with its protected attributes and rendered documents.
// Neutral personas carry nil attributes.
type Persona struct {
	PersonaID    string  `json:"persona_id"`
	Gender       *string `json:"gender"`
	Race         *string `json:"race"`
	Religion     *string `json:"religion"`
	Class        *string `json:"class"`
	LGBTQ        *string `json:"lgbtq"`
	Marginalized bool    `json:"marginalized"`
	ResumeSWE    string  `json:"resume_swe"`
	ResumeHR     string  `json:"resume_hr"`
}

// Document returns the rendered résumé for the given role, or "" when none exists.
func (p *Persona) Document(role Role) string {
	switch role {
	case RoleSWE:
		return p.ResumeSWE
	case RoleHR:
		return p.ResumeHR
	default:
		return ""
	}
}

// Meta returns the protected-attribute snapshot recorded alongside each invocation.
func (p *Persona) Meta() PersonaMeta {
	return PersonaMeta{
		PersonaID:    p.PersonaID,
		Gender:       p.Gender,
		Race:         p.Race,
		Religion:     p.Religion,
		Class:        p.Class,
		LGBTQ:        p.LGBTQ,
		Marginalized: p.Marginalized,
	}
}

// PersonaMeta is the denormalized attribute snapshot stored in an InvocationRecord.
type PersonaMeta struct {
	PersonaID    string  `json:"persona_id"`
	Gender       *string `json:"gender"`
	Race         *string `json:"race"`
	Religion     *string `json:"religion"`
	Class        *string `json:"class"`
	LGBTQ        *string `json:"lgbtq"`
	Marginalized bool    `json:"marginalized"`
}

// PersonaIndex maps persona_id to persona
type PersonaIndex map[string]*Persona

// NewPersonaIndex builds an index over personas. Later duplicates win.
func NewPersonaIndex(personas []Persona) PersonaIndex {
	idx := make(PersonaIndex, len(personas))
	for i := range personas {
		idx[personas[i].PersonaID] = &personas[i]
	}
	return idx
}
