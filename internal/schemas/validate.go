// Package schemas provides JSON Schema validation for the audit input files.
package schemas

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFS embed.FS

// Kind names one of the embedded input schemas
type Kind string

const (
	// KindVariants is the batch composition file
	KindVariants Kind = "batch_variants"
	// KindPersonas is the persona corpus with rendered resumes
	KindPersonas Kind = "personas"
	// KindTemplates is a role's prompt template map
	KindTemplates Kind = "prompt_templates"
	// KindCheckpoint is the per-role progress marker
	KindCheckpoint Kind = "checkpoint"
)

// Kinds lists every embedded schema
var Kinds = []Kind{KindVariants, KindPersonas, KindTemplates, KindCheckpoint}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Schema returns the raw embedded schema for kind
func Schema(kind Kind) ([]byte, error) {
	path := string(kind) + ".schema.json"
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "no embedded schema", Cause: err}
	}
	return data, nil
}

// ValidateDocument validates a JSON document against the embedded schema for kind
func ValidateDocument(kind Kind, document []byte) error {
	schema, err := Schema(kind)
	if err != nil {
		return err
	}
	return validate(string(kind), gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(document))
}

func validate(name string, schemaLoader, documentLoader gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    name,
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	// Build structured error
	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}
