package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func TestLedgerItemIDs(t *testing.T) {
	dir := t.TempDir()
	lg, err := Open(dir, "album")
	require.NoError(t, err)
	assert.Empty(t, lg.ItemIDs())

	require.NoError(t, lg.RefreshItem("a"))
	require.NoError(t, lg.RefreshItem("b"))
	require.NoError(t, lg.RefreshItem("a"))
	assert.Equal(t, []string{"a", "b"}, lg.ItemIDs())

	require.NoError(t, lg.ForgetItem("a"))
	require.NoError(t, lg.ForgetItem("missing"))
	assert.Equal(t, []string{"b"}, lg.ItemIDs())

	reopened, err := Open(dir, "album")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, reopened.ItemIDs())
}

func TestLedgerReplaceItemIDsDedupes(t *testing.T) {
	dir := t.TempDir()
	lg, err := Open(dir, "album")
	require.NoError(t, err)

	require.NoError(t, lg.RefreshItem("old"))
	require.NoError(t, lg.ReplaceItemIDs([]string{"x", "y", "x", ""}))
	assert.Equal(t, []string{"x", "y"}, lg.ItemIDs())

	data, err := os.ReadFile(filepath.Join(dir, "album.items.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "\"x\"\n\"y\"\n", string(data))
}

func TestLedgerItemIDsAfterReplace(t *testing.T) {
	lg, err := Open(t.TempDir(), "album")
	require.NoError(t, err)

	const n = 5000
	ids := make([]string, 0, 2*n)
	for i := range n {
		id := fmt.Sprintf("item-%05d", i)
		ids = append(ids, id, id)
	}
	require.NoError(t, lg.ReplaceItemIDs(ids))
	require.Len(t, lg.ItemIDs(), n)

	require.NoError(t, lg.ReplaceItemIDs([]string{"a", "b"}))
	require.NoError(t, lg.RefreshItem("item-00001"))
	require.NoError(t, lg.RefreshItem("a"))
	require.NoError(t, lg.ForgetItem("b"))
	require.NoError(t, lg.RefreshItem("b"))
	assert.Equal(t, []string{"a", "item-00001", "b"}, lg.ItemIDs())
}

func TestLedgerFields(t *testing.T) {
	dir := t.TempDir()
	lg, err := Open(dir, "album")
	require.NoError(t, err)

	require.NoError(t, lg.RefreshField(&types.FieldDefinition{ID: "f1", Label: "Location"}))
	require.NoError(t, lg.RefreshField(&types.FieldDefinition{ID: "f2", Label: "Camera"}))
	require.NoError(t, lg.RefreshField(&types.FieldDefinition{ID: "f1", Label: "Place"}))

	want := []*types.FieldDefinition{{ID: "f1", Label: "Place"}, {ID: "f2", Label: "Camera"}}
	assert.Equal(t, want, lg.Fields())

	reopened, err := Open(dir, "album")
	require.NoError(t, err)
	assert.Equal(t, want, reopened.Fields())

	require.NoError(t, reopened.ForgetField("f1"))
	assert.Equal(t, []*types.FieldDefinition{{ID: "f2", Label: "Camera"}}, reopened.Fields())

	require.NoError(t, reopened.ReplaceFields(nil))
	assert.Empty(t, reopened.Fields())
}

func TestLedgerFieldsAreCopies(t *testing.T) {
	lg, err := Open(t.TempDir(), "album")
	require.NoError(t, err)

	f := &types.FieldDefinition{ID: "f1", Label: "Location"}
	require.NoError(t, lg.RefreshField(f))
	f.Label = "changed"
	lg.Fields()[0].Label = "changed again"

	assert.Equal(t, "Location", lg.Fields()[0].Label)
}

func TestLedgerSkipsMalformedLines(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		body   string
		ids    []string
		fields []*types.FieldDefinition
	}{
		{
			name: "item ids",
			file: "album.items.jsonl",
			body: "\"a\"\nnot json\n\n42\n\"\"\n\"b\"\n\"a\"\n",
			ids:  []string{"a", "b"},
		},
		{
			name:   "field definitions",
			file:   "album.fields.jsonl",
			body:   "{\"id\":\"f1\",\"label\":\"Location\"}\n{broken\n{\"label\":\"no id\"}\n",
			fields: []*types.FieldDefinition{{ID: "f1", Label: "Location"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.body), 0o644))

			lg, err := Open(dir, "album")
			require.NoError(t, err)
			if tt.ids != nil {
				assert.Equal(t, tt.ids, lg.ItemIDs())
			}
			if tt.fields != nil {
				assert.Equal(t, tt.fields, lg.Fields())
			}
		})
	}
}

func TestLedgerLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	lg, err := Open(dir, "album")
	require.NoError(t, err)
	require.NoError(t, lg.RefreshItem("a"))
	require.NoError(t, lg.RefreshField(&types.FieldDefinition{ID: "f1", Label: "L"}))

	matches, err := filepath.Glob(filepath.Join(dir, ".ledger-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
