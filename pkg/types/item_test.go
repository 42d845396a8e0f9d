package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemResolveMetadata(t *testing.T) {
	tests := []struct {
		name        string
		metadata    map[string]string
		fieldIDs    []string
		want        map[string]string
		wantChanged bool
	}{
		{
			name:        "nil map gains every field",
			metadata:    nil,
			fieldIDs:    []string{"f1", "f2"},
			want:        map[string]string{"f1": "", "f2": ""},
			wantChanged: true,
		},
		{
			name:        "existing values kept",
			metadata:    map[string]string{"f1": "Paris"},
			fieldIDs:    []string{"f1"},
			want:        map[string]string{"f1": "Paris"},
			wantChanged: false,
		},
		{
			name:        "removed field dropped",
			metadata:    map[string]string{"f1": "Paris", "gone": "x"},
			fieldIDs:    []string{"f1"},
			want:        map[string]string{"f1": "Paris"},
			wantChanged: true,
		},
		{
			name:        "no fields leaves empty map",
			metadata:    map[string]string{"gone": "x"},
			fieldIDs:    nil,
			want:        map[string]string{},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := &Item{ID: "a1", CustomMetadata: tt.metadata}
			changed := it.ResolveMetadata(tt.fieldIDs)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.want, it.CustomMetadata)
		})
	}
}

func TestItemCloneIsDeep(t *testing.T) {
	orig := &Item{ID: "a1", DisplayName: "beach.jpg", CustomMetadata: map[string]string{"f1": "Paris"}}
	cp := orig.Clone()
	cp.CustomMetadata["f1"] = "Rome"

	assert.Equal(t, "Paris", orig.CustomMetadata["f1"])
	assert.True(t, orig.Equal(orig.Clone()))
	assert.Nil(t, (*Item)(nil).Clone())
}

func TestItemEqual(t *testing.T) {
	base := &Item{ID: "a1", Content: "data:", DisplayName: "a.png"}

	withEmpty := base.Clone()
	withEmpty.CustomMetadata = map[string]string{}
	assert.True(t, base.Equal(withEmpty), "nil and empty metadata compare equal")

	renamed := base.Clone()
	renamed.DisplayName = "b.png"
	assert.False(t, base.Equal(renamed))

	tagged := base.Clone()
	tagged.SetMetadata("f1", "x")
	assert.False(t, base.Equal(tagged))

	assert.False(t, base.Equal(nil))
}

func TestItemMetadataMutators(t *testing.T) {
	it := &Item{ID: "a1"}
	assert.False(t, it.HasField("f1"))

	it.SetMetadata("f1", "Paris")
	assert.True(t, it.HasField("f1"))

	assert.True(t, it.RemoveMetadata("f1"))
	assert.False(t, it.RemoveMetadata("f1"), "second removal is a no-op")
}

func TestNormalizeLabel(t *testing.T) {
	got, err := NormalizeLabel("  Location ")
	assert.NoError(t, err)
	assert.Equal(t, "Location", got)

	_, err = NormalizeLabel("   ")
	assert.ErrorIs(t, err, ErrInvalidLabel)
}
