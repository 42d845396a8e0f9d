package types

// Item is one stored artifact. ID, Content and the four label fields are
// fixed at creation; CustomMetadata is keyed by FieldDefinition ID and is the
// only part that changes afterwards.
type Item struct {
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	DisplayName    string            `json:"display_name"`
	SizeLabel      string            `json:"size_label"`
	TypeLabel      string            `json:"type_label"`
	CreatedLabel   string            `json:"created_label"`
	CustomMetadata map[string]string `json:"custom_metadata"`
}

// RecordID returns the primary key.
func (i *Item) RecordID() string { return i.ID }

// Clone returns a deep copy. A nil receiver returns nil.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	if i.CustomMetadata != nil {
		cp.CustomMetadata = make(map[string]string, len(i.CustomMetadata))
		for k, v := range i.CustomMetadata {
			cp.CustomMetadata[k] = v
		}
	}
	return &cp
}

// Equal reports whether both items carry the same values. A nil metadata map
// and an empty one compare equal.
func (i *Item) Equal(other *Item) bool {
	if i == nil || other == nil {
		return i == other
	}
	if i.ID != other.ID || i.Content != other.Content ||
		i.DisplayName != other.DisplayName || i.SizeLabel != other.SizeLabel ||
		i.TypeLabel != other.TypeLabel || i.CreatedLabel != other.CreatedLabel {
		return false
	}
	if len(i.CustomMetadata) != len(other.CustomMetadata) {
		return false
	}
	for k, v := range i.CustomMetadata {
		ov, ok := other.CustomMetadata[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// HasField reports whether the metadata map holds an entry for fieldID.
func (i *Item) HasField(fieldID string) bool {
	_, ok := i.CustomMetadata[fieldID]
	return ok
}

// SetMetadata sets one metadata value, creating the map when absent.
func (i *Item) SetMetadata(fieldID, value string) {
	if i.CustomMetadata == nil {
		i.CustomMetadata = make(map[string]string)
	}
	i.CustomMetadata[fieldID] = value
}

// RemoveMetadata deletes fieldID from the map. It reports whether an entry
// was present.
func (i *Item) RemoveMetadata(fieldID string) bool {
	if _, ok := i.CustomMetadata[fieldID]; !ok {
		return false
	}
	delete(i.CustomMetadata, fieldID)
	return true
}

// ResolveMetadata makes the metadata map hold exactly one entry per field in
// fieldIDs: missing keys get the empty string and keys of fields no longer
// defined are dropped. Existing values are kept. It reports whether the map
// changed.
func (i *Item) ResolveMetadata(fieldIDs []string) bool {
	changed := false
	if i.CustomMetadata == nil {
		i.CustomMetadata = make(map[string]string, len(fieldIDs))
	}
	defined := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		defined[id] = true
		if _, ok := i.CustomMetadata[id]; !ok {
			i.CustomMetadata[id] = ""
			changed = true
		}
	}
	for k := range i.CustomMetadata {
		if !defined[k] {
			delete(i.CustomMetadata, k)
			changed = true
		}
	}
	return changed
}
