//nolint:revive // types is a standard Go package name pattern
package types

// VariantSize is the number of candidates shown together in one prompt
const VariantSize = 11

// BatchVariant is a fixed-order group of candidate identifiers. The order defines the
// candidate numbering shown to the model.
type BatchVariant struct {
	VariantID  string   `json:"variant_id"`
	PersonaIDs []string `json:"persona_ids"`
}
