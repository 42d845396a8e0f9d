package schemasync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/albumstore/internal/records"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// memItems is an in-memory items collection.
type memItems struct {
	mu      sync.Mutex
	items   map[string]*types.Item
	failAll error
	failPut map[string]error
	puts    int
}

func newMemItems(items ...*types.Item) *memItems {
	m := &memItems{items: map[string]*types.Item{}, failPut: map[string]error{}}
	for _, it := range items {
		m.items[it.ID] = it.Clone()
	}
	return m
}

func (m *memItems) Get(_ context.Context, id string) (*types.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, false, nil
	}
	return it.Clone(), true, nil
}

func (m *memItems) All(context.Context) ([]*types.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := make([]*types.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memItems) Upsert(_ context.Context, it *types.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if err := m.failPut[it.ID]; err != nil {
		return err
	}
	m.items[it.ID] = it.Clone()
	return nil
}

func (m *memItems) metadata(id string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].CustomMetadata
}

func withMeta(id string, meta map[string]string) *types.Item {
	return &types.Item{ID: id, DisplayName: id, CustomMetadata: meta}
}

func TestFieldDefinedFansOut(t *testing.T) {
	var items []*types.Item
	for i := range 8 {
		items = append(items, withMeta(fmt.Sprintf("i%d", i), map[string]string{"f0": "kept"}))
	}
	items = append(items, withMeta("nil-map", nil))
	items = append(items, withMeta("has-x", map[string]string{"f0": "", "X": "set"}))

	m := newMemItems(items...)
	s := New(m, nil)

	patched, err := s.FieldDefined(context.Background(), "X")
	require.NoError(t, err)
	assert.Len(t, patched, 9)

	for _, it := range items {
		meta := m.metadata(it.ID)
		require.Contains(t, meta, "X", it.ID)
	}
	assert.Equal(t, "", m.metadata("i0")["X"])
	assert.Equal(t, "kept", m.metadata("i0")["f0"])
	assert.Equal(t, "set", m.metadata("has-x")["X"], "existing values are not reset")
}

func TestFieldRemovedFansOut(t *testing.T) {
	m := newMemItems(
		withMeta("a", map[string]string{"f1": "Paris", "f2": ""}),
		withMeta("b", map[string]string{"f2": "x"}),
	)
	s := New(m, nil)

	patched, err := s.FieldRemoved(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, patched, 1)
	assert.Equal(t, "a", patched[0].ID)

	assert.Equal(t, map[string]string{"f2": ""}, m.metadata("a"))
	assert.Equal(t, map[string]string{"f2": "x"}, m.metadata("b"))
}

func TestFanOutErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		setup   func(*memItems)
		patched int
	}{
		{
			name:  "scan fails",
			setup: func(m *memItems) { m.failAll = boom },
		},
		{
			name:    "one item fails",
			setup:   func(m *memItems) { m.failPut["b"] = boom },
			patched: 2,
		},
		{
			name: "retry scheduled counts as patched",
			setup: func(m *memItems) {
				m.failPut["b"] = fmt.Errorf("%w: %w", records.ErrRetrying, boom)
			},
			patched: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemItems(withMeta("a", nil), withMeta("b", nil), withMeta("c", nil))
			tt.setup(m)
			s := New(m, nil)

			patched, err := s.FieldDefined(context.Background(), "X")
			assert.Len(t, patched, tt.patched)
			if tt.patched == 3 {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, boom)
			}
		})
	}
}

func TestValueSet(t *testing.T) {
	m := newMemItems(withMeta("a1", nil))
	s := New(m, nil)
	ctx := context.Background()

	it, err := s.ValueSet(ctx, "a1", "f1", "Paris")
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, map[string]string{"f1": "Paris"}, m.metadata("a1"))

	it, err = s.ValueSet(ctx, "gone", "f1", "Paris")
	assert.NoError(t, err, "missing item is a no-op")
	assert.Nil(t, it)
	assert.Equal(t, 1, m.puts)
}

func TestResolveHealsDrift(t *testing.T) {
	m := newMemItems()
	s := New(m, nil)
	items := []*types.Item{
		withMeta("ok", map[string]string{"f1": "v"}),
		withMeta("missing", map[string]string{}),
		withMeta("stale", map[string]string{"f1": "", "old": "x"}),
	}

	healed := s.Resolve(context.Background(), items, []string{"f1"})
	assert.Equal(t, 2, healed)
	assert.Equal(t, 2, m.puts)
	for _, it := range items {
		assert.Equal(t, []string{"f1"}, keys(it.CustomMetadata), it.ID)
	}
	assert.Equal(t, map[string]string{"f1": ""}, m.metadata("stale"))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
