package types

import "github.com/google/uuid"

// NewID generates a time-ordered UUID v7 for a new record.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
