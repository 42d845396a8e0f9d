// Package ledger keeps the fallback mirror of the album: every item id and
// every field definition, stored as JSONL next to the database. The mirror
// is only read when the database comes back empty or fails, and it is never
// the primary write target.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for skipped lines.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.log = l
		}
	}
}

// Ledger holds the mirrored ids and definitions in memory and rewrites the
// matching file after every change. Last write wins.
type Ledger struct {
	log        *zap.Logger
	itemsPath  string
	fieldsPath string

	mu     sync.Mutex
	ids    []string
	known  map[string]struct{}
	fields []*types.FieldDefinition
}

// Open loads the ledger files for dbName under dir, creating dir if needed.
// Missing files load as empty; malformed lines are skipped.
func Open(dir, dbName string, opts ...Option) (*Ledger, error) {
	if dir == "" {
		dir = "."
	}
	lg := &Ledger{
		log:        zap.NewNop(),
		itemsPath:  filepath.Join(dir, dbName+".items.jsonl"),
		fieldsPath: filepath.Join(dir, dbName+".fields.jsonl"),
		known:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(lg)
	}
	lg.log = lg.log.Named("ledger")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	if err := lg.loadItems(); err != nil {
		return nil, err
	}
	if err := lg.loadFields(); err != nil {
		return nil, err
	}
	return lg, nil
}

func (lg *Ledger) loadItems() error {
	raw, skipped, err := readJSONL(lg.itemsPath)
	if err != nil {
		return err
	}
	for _, r := range raw {
		var id string
		if err := json.Unmarshal(r, &id); err != nil || id == "" {
			skipped++
			continue
		}
		lg.addIDLocked(id)
	}
	if skipped > 0 {
		lg.log.Warn("skipped malformed item ids", zap.String("path", lg.itemsPath), zap.Int("lines", skipped))
	}
	return nil
}

func (lg *Ledger) loadFields() error {
	raw, skipped, err := readJSONL(lg.fieldsPath)
	if err != nil {
		return err
	}
	for _, r := range raw {
		var f types.FieldDefinition
		if err := json.Unmarshal(r, &f); err != nil || f.ID == "" {
			skipped++
			continue
		}
		lg.upsertFieldLocked(&f)
	}
	if skipped > 0 {
		lg.log.Warn("skipped malformed field definitions", zap.String("path", lg.fieldsPath), zap.Int("lines", skipped))
	}
	return nil
}

// ItemIDs returns a copy of the mirrored item ids.
func (lg *Ledger) ItemIDs() []string {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return slices.Clone(lg.ids)
}

// Fields returns copies of the mirrored field definitions.
func (lg *Ledger) Fields() []*types.FieldDefinition {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	out := make([]*types.FieldDefinition, 0, len(lg.fields))
	for _, f := range lg.fields {
		out = append(out, f.Clone())
	}
	return out
}

// RefreshItem records id if it is not already mirrored.
func (lg *Ledger) RefreshItem(id string) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if !lg.addIDLocked(id) {
		return nil
	}
	return lg.persistItemsLocked()
}

// ForgetItem trims id from the mirror.
func (lg *Ledger) ForgetItem(id string) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if _, ok := lg.known[id]; !ok {
		return nil
	}
	delete(lg.known, id)
	lg.ids = slices.DeleteFunc(lg.ids, func(v string) bool { return v == id })
	return lg.persistItemsLocked()
}

// ReplaceItemIDs overwrites the id list, dropping duplicates.
func (lg *Ledger) ReplaceItemIDs(ids []string) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.ids = make([]string, 0, len(ids))
	lg.known = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			lg.addIDLocked(id)
		}
	}
	return lg.persistItemsLocked()
}

// addIDLocked appends id unless it is already mirrored.
func (lg *Ledger) addIDLocked(id string) bool {
	if _, ok := lg.known[id]; ok {
		return false
	}
	lg.known[id] = struct{}{}
	lg.ids = append(lg.ids, id)
	return true
}

// RefreshField mirrors f, replacing any definition with the same id.
func (lg *Ledger) RefreshField(f *types.FieldDefinition) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.upsertFieldLocked(f.Clone())
	return lg.persistFieldsLocked()
}

// ForgetField trims the definition with id from the mirror.
func (lg *Ledger) ForgetField(id string) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	n := len(lg.fields)
	lg.fields = slices.DeleteFunc(lg.fields, func(f *types.FieldDefinition) bool { return f.ID == id })
	if len(lg.fields) == n {
		return nil
	}
	return lg.persistFieldsLocked()
}

// ReplaceFields overwrites the mirrored definitions.
func (lg *Ledger) ReplaceFields(fields []*types.FieldDefinition) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.fields = nil
	for _, f := range fields {
		lg.upsertFieldLocked(f.Clone())
	}
	return lg.persistFieldsLocked()
}

func (lg *Ledger) upsertFieldLocked(f *types.FieldDefinition) {
	for i, cur := range lg.fields {
		if cur.ID == f.ID {
			lg.fields[i] = f
			return
		}
	}
	lg.fields = append(lg.fields, f)
}

func (lg *Ledger) persistItemsLocked() error {
	records, err := marshalAll(lg.ids)
	if err != nil {
		return fmt.Errorf("encoding item ids: %w", err)
	}
	return writeJSONL(lg.itemsPath, records)
}

func (lg *Ledger) persistFieldsLocked() error {
	records, err := marshalAll(lg.fields)
	if err != nil {
		return fmt.Errorf("encoding field definitions: %w", err)
	}
	return writeJSONL(lg.fieldsPath, records)
}
