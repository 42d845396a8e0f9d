package types

import "strings"

// FieldDefinition is a user-defined metadata column shared by every Item.
// There is no rename: a new label means delete and recreate.
type FieldDefinition struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RecordID returns the primary key.
func (f *FieldDefinition) RecordID() string { return f.ID }

// Clone returns a copy. A nil receiver returns nil.
func (f *FieldDefinition) Clone() *FieldDefinition {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

// NormalizeLabel trims surrounding whitespace and rejects empty labels with
// ErrInvalidLabel.
func NormalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", ErrInvalidLabel
	}
	return label, nil
}

// FieldIDs returns the IDs of fields in order.
func FieldIDs(fields []*FieldDefinition) []string {
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	return ids
}
