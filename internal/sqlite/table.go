package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Record is anything stored in a collection keyed by id.
type Record interface {
	RecordID() string
}

type scanner interface {
	Scan(dest ...any) error
}

// codec maps a record type onto the columns of its collection. The first
// column is always id.
type codec[T Record] struct {
	columns []string
	values  func(T) ([]any, error)
	scan    func(scanner) (T, error)
}

// Table gives typed access to one collection through the Handle. Every
// method fails with a NotReady StoreError while the Handle is not Ready.
type Table[T Record] struct {
	h     *Handle
	name  string
	codec codec[T]

	insertSQL string
	putSQL    string
	getSQL    string
	allSQL    string
	deleteSQL string
}

func newTable[T Record](h *Handle, name string, c codec[T]) *Table[T] {
	cols := strings.Join(c.columns, ", ")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(c.columns)), ", ")
	return &Table[T]{
		h:         h,
		name:      name,
		codec:     c,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, cols, marks),
		putSQL:    fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", name, cols, marks),
		getSQL:    fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", cols, name),
		allSQL:    fmt.Sprintf("SELECT %s FROM %s ORDER BY id", cols, name),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE id = ?", name),
	}
}

// Name returns the collection name.
func (t *Table[T]) Name() string { return t.name }

// Insert adds a new record. An existing id fails with a DuplicateKey error.
func (t *Table[T]) Insert(ctx context.Context, rec T) error {
	return t.write(ctx, "insert", t.insertSQL, rec)
}

// Put inserts or overwrites the record with the same id.
func (t *Table[T]) Put(ctx context.Context, rec T) error {
	return t.write(ctx, "put", t.putSQL, rec)
}

func (t *Table[T]) write(ctx context.Context, op, query string, rec T) error {
	if rec.RecordID() == "" {
		return &types.StoreError{Op: op, Collection: t.name, Kind: types.KindFatal, Err: types.ErrInvalidID}
	}
	args, err := t.codec.values(rec)
	if err != nil {
		return &types.StoreError{Op: op, Collection: t.name, Kind: types.KindFatal, Err: err}
	}
	db, err := t.h.conn(op, t.name)
	if err != nil {
		return err
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := db.ExecContext(ctx, query, args...)
		return execErr
	})
	return Classify(op, t.name, err)
}

// Get returns the record with id. A missing record fails with a NotFound
// StoreError.
func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, &types.StoreError{Op: "get", Collection: t.name, Kind: types.KindFatal, Err: types.ErrInvalidID}
	}
	db, err := t.h.conn("get", t.name)
	if err != nil {
		return zero, err
	}
	rec, err := t.codec.scan(db.QueryRowContext(ctx, t.getSQL, id))
	if err != nil {
		return zero, Classify("get", t.name, err)
	}
	return rec, nil
}

// All returns every record ordered by id. An empty collection yields an
// empty, non-nil slice.
func (t *Table[T]) All(ctx context.Context) ([]T, error) {
	db, err := t.h.conn("get all", t.name)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, t.allSQL)
	if err != nil {
		return nil, Classify("get all", t.name, err)
	}
	defer rows.Close()

	results := []T{}
	for rows.Next() {
		rec, err := t.codec.scan(rows)
		if err != nil {
			return nil, Classify("get all", t.name, fmt.Errorf("hydrating row: %w", err))
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("get all", t.name, err)
	}
	return results, nil
}

// Delete removes the record with id. Deleting a missing record succeeds.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &types.StoreError{Op: "delete", Collection: t.name, Kind: types.KindFatal, Err: types.ErrInvalidID}
	}
	db, err := t.h.conn("delete", t.name)
	if err != nil {
		return err
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := db.ExecContext(ctx, t.deleteSQL, id)
		return execErr
	})
	return Classify("delete", t.name, err)
}

// NewItemsTable returns the accessor for the items collection.
func NewItemsTable(h *Handle) *Table[*types.Item] {
	return newTable(h, types.CollectionItems, codec[*types.Item]{
		columns: []string{"id", "content", "display_name", "size_label", "type_label", "created_label", "custom_metadata"},
		values: func(it *types.Item) ([]any, error) {
			meta := it.CustomMetadata
			if meta == nil {
				meta = map[string]string{}
			}
			encoded, err := json.Marshal(meta)
			if err != nil {
				return nil, fmt.Errorf("encoding custom metadata: %w", err)
			}
			return []any{it.ID, it.Content, it.DisplayName, it.SizeLabel, it.TypeLabel, it.CreatedLabel, string(encoded)}, nil
		},
		scan: hydrateItem,
	})
}

// NewFieldsTable returns the accessor for the field_definitions collection.
func NewFieldsTable(h *Handle) *Table[*types.FieldDefinition] {
	return newTable(h, types.CollectionFields, codec[*types.FieldDefinition]{
		columns: []string{"id", "label"},
		values: func(f *types.FieldDefinition) ([]any, error) {
			return []any{f.ID, f.Label}, nil
		},
		scan: hydrateField,
	})
}

// hydrateItem converts one row into a *types.Item. The metadata map is never
// nil.
func hydrateItem(row scanner) (*types.Item, error) {
	var it types.Item
	var meta string
	if err := row.Scan(&it.ID, &it.Content, &it.DisplayName, &it.SizeLabel, &it.TypeLabel, &it.CreatedLabel, &meta); err != nil {
		return nil, err
	}
	it.CustomMetadata = map[string]string{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &it.CustomMetadata); err != nil {
			return nil, fmt.Errorf("parsing custom_metadata: %w", err)
		}
		if it.CustomMetadata == nil {
			it.CustomMetadata = map[string]string{}
		}
	}
	return &it, nil
}

func hydrateField(row scanner) (*types.FieldDefinition, error) {
	var f types.FieldDefinition
	if err := row.Scan(&f.ID, &f.Label); err != nil {
		return nil, err
	}
	return &f, nil
}
