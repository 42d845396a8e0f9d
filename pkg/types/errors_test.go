package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: items.id")
	err := fmt.Errorf("saving: %w", &StoreError{
		Op:         "insert",
		Collection: CollectionItems,
		Kind:       KindDuplicateKey,
		Err:        cause,
	})

	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransientIO)
	assert.Equal(t, KindDuplicateKey, KindOf(err))
	assert.Contains(t, err.Error(), "insert items")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "bare sentinel", err: ErrBlocked, want: KindBlocked},
		{name: "wrapped sentinel", err: fmt.Errorf("open: %w", ErrVersionConflict), want: KindVersionConflict},
		{name: "unknown error is fatal", err: errors.New("boom"), want: KindFatal},
		{
			name: "store error without cause",
			err:  &StoreError{Op: "open", Kind: KindNotReady},
			want: KindNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStoreErrorClassifier(t *testing.T) {
	var classifier interface{ ErrorKind() string }
	err := error(&StoreError{Op: "put", Kind: KindTransientIO, Err: errors.New("disk I/O error")})
	assert.True(t, errors.As(err, &classifier))
	assert.Equal(t, "transient_io", classifier.ErrorKind())
}
