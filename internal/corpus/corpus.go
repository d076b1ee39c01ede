// Package corpus loads and cross-checks the three external inputs of an audit run:
// batch variants, the persona corpus and a role's prompt templates.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/prompts"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/schemas"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// Paths locates the input files for one role
type Paths struct {
	Variants  string
	Personas  string
	Templates string
}

// DefaultPaths returns the standard layout under dataDir
func DefaultPaths(dataDir string, role types.Role) Paths {
	return Paths{
		Variants:  filepath.Join(dataDir, "batches", "batch_variants.json"),
		Personas:  filepath.Join(dataDir, "all_personas_with_resumes.json"),
		Templates: filepath.Join(dataDir, "prompts", string(role)+"_templates.json"),
	}
}

// InputError is a missing, malformed or inconsistent input file
type InputError struct {
	Path    string
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("input %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("input %s: %s", e.Path, e.Message)
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// Corpus is the validated input set for one role
type Corpus struct {
	Role      types.Role
	Variants  []types.BatchVariant
	Personas  types.PersonaIndex
	Templates []prompts.Template
}

// Load reads, schema-validates and decodes the three input files concurrently,
// then checks that they reference each other consistently.
func Load(ctx context.Context, fs afero.Fs, paths Paths, role types.Role) (*Corpus, error) {
	c := &Corpus{Role: role}
	var personas []types.Persona

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := readValidated(fs, paths.Variants, schemas.KindVariants)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &c.Variants); err != nil {
			return &InputError{Path: paths.Variants, Message: "decode variants", Cause: err}
		}
		return nil
	})

	g.Go(func() error {
		data, err := readValidated(fs, paths.Personas, schemas.KindPersonas)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &personas); err != nil {
			return &InputError{Path: paths.Personas, Message: "decode personas", Cause: err}
		}
		return nil
	})

	g.Go(func() error {
		data, err := readValidated(fs, paths.Templates, schemas.KindTemplates)
		if err != nil {
			return err
		}
		templates, err := prompts.ParseTemplates(data)
		if err != nil {
			return &InputError{Path: paths.Templates, Message: "decode templates", Cause: err}
		}
		c.Templates = templates
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.Personas = types.NewPersonaIndex(personas)
	if err := c.check(paths); err != nil {
		return nil, err
	}
	return c, nil
}

func readValidated(fs afero.Fs, path string, kind schemas.Kind) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &InputError{Path: path, Message: "read failed", Cause: err}
	}
	if err := schemas.ValidateDocument(kind, data); err != nil {
		return nil, &InputError{Path: path, Message: "schema check failed", Cause: err}
	}
	return data, nil
}

// check enforces the cross-file invariants
func (c *Corpus) check(paths Paths) error {
	for _, v := range c.Variants {
		for _, id := range v.PersonaIDs {
			p, ok := c.Personas[id]
			if !ok {
				return &InputError{
					Path:    paths.Variants,
					Message: fmt.Sprintf("variant %s references unknown persona %s", v.VariantID, id),
				}
			}
			if strings.TrimSpace(p.Document(c.Role)) == "" {
				return &InputError{
					Path:    paths.Personas,
					Message: fmt.Sprintf("persona %s has no %s resume", id, c.Role),
				}
			}
		}
	}
	for _, t := range c.Templates {
		if err := t.Validate(); err != nil {
			return &InputError{Path: paths.Templates, Message: "invalid template", Cause: err}
		}
	}
	return nil
}

// Documents returns the role documents for ids in order
func (c *Corpus) Documents(ids []string) ([]string, error) {
	docs := make([]string, len(ids))
	for i, id := range ids {
		p, ok := c.Personas[id]
		if !ok {
			return nil, fmt.Errorf("unknown persona %s", id)
		}
		docs[i] = p.Document(c.Role)
	}
	return docs, nil
}

// Meta returns the attribute snapshots for ids in order
func (c *Corpus) Meta(ids []string) ([]types.PersonaMeta, error) {
	meta := make([]types.PersonaMeta, len(ids))
	for i, id := range ids {
		p, ok := c.Personas[id]
		if !ok {
			return nil, fmt.Errorf("unknown persona %s", id)
		}
		meta[i] = p.Meta()
	}
	return meta, nil
}
