package album

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/albumstore/internal/records"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// recorder is a Listener that keeps every notification.
type recorder struct {
	mu            sync.Mutex
	available     []*types.Item
	removed       []string
	defined       []*types.FieldDefinition
	fieldsRemoved []string
	notices       []types.Notice
}

func (r *recorder) ItemAvailable(it *types.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = append(r.available, it)
}

func (r *recorder) ItemRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *recorder) FieldDefined(f *types.FieldDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defined = append(r.defined, f)
}

func (r *recorder) FieldRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fieldsRemoved = append(r.fieldsRemoved, id)
}

func (r *recorder) StorageNotice(n types.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) items() []*types.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Item(nil), r.available...)
}

func (r *recorder) allNotices() []types.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notice(nil), r.notices...)
}

// faultyItems wraps the items table with switchable faults.
type faultyItems struct {
	records.Table[*types.Item]
	emptyAll   atomic.Bool
	failAll    atomic.Bool
	dropWrites atomic.Int32
	inserts    atomic.Int32
	puts       atomic.Int32
}

var errDiskRead = &types.StoreError{Op: "all", Kind: types.KindTransientIO, Err: errors.New("disk read failed")}

func (f *faultyItems) All(ctx context.Context) ([]*types.Item, error) {
	switch {
	case f.failAll.Load():
		return nil, errDiskRead
	case f.emptyAll.Load():
		return []*types.Item{}, nil
	}
	return f.Table.All(ctx)
}

func (f *faultyItems) Insert(ctx context.Context, it *types.Item) error {
	f.inserts.Add(1)
	if f.dropWrites.Add(-1) >= 0 {
		return nil
	}
	return f.Table.Insert(ctx, it)
}

func (f *faultyItems) Put(ctx context.Context, it *types.Item) error {
	f.puts.Add(1)
	return f.Table.Put(ctx, it)
}

// faultyFields fails bulk reads of the field definitions on demand.
type faultyFields struct {
	records.Table[*types.FieldDefinition]
	failAll atomic.Bool
}

func (f *faultyFields) All(ctx context.Context) ([]*types.FieldDefinition, error) {
	if f.failAll.Load() {
		return nil, errDiskRead
	}
	return f.Table.All(ctx)
}

func testConfig(dir string) types.Config {
	cfg := types.DefaultConfig(dir)
	cfg.UpsertBackoff = 5 * time.Millisecond
	cfg.VersionBackoff = 5 * time.Millisecond
	return cfg
}

// newEngine builds an engine on dir without starting it.
func newEngine(t *testing.T, cfg types.Config, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e, err := New(cfg, append([]Option{WithListener(rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, rec
}

// startEngine builds and starts an engine on dir.
func startEngine(t *testing.T, dir string, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	e, rec := newEngine(t, testConfig(dir), opts...)
	require.NoError(t, e.Start(context.Background()))
	return e, rec
}

func settle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Settle(ctx))
}

func photo(id, name string) types.Item {
	return types.Item{
		ID:           id,
		Content:      "data:image/png;base64,iVBORw0KGgo=",
		DisplayName:  name,
		SizeLabel:    "8 B",
		TypeLabel:    "image/png",
		CreatedLabel: "2026-10-19",
	}
}

func storedItem(t *testing.T, e *Engine, id string) *types.Item {
	t.Helper()
	items, err := e.Items(context.Background())
	require.NoError(t, err)
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// seedDatabase writes an album database at version holding one item.
func seedDatabase(t *testing.T, dir string, version int) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, types.DefaultDBName+".db"))
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range []string{
		"CREATE TABLE schema_version (version INTEGER NOT NULL)",
		`CREATE TABLE items (id TEXT PRIMARY KEY, content TEXT NOT NULL, display_name TEXT NOT NULL,
			size_label TEXT NOT NULL, type_label TEXT NOT NULL, created_label TEXT NOT NULL, custom_metadata TEXT NOT NULL)`,
		"INSERT INTO items VALUES ('seed', 'c', 'n', 's', 't', 'd', '{}')",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	require.NoError(t, err)
}
