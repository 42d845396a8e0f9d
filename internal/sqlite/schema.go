// Package sqlite implements the primary store on top of SQLite: the Handle
// that owns the single connection and its open/upgrade/close lifecycle, and
// the Table accessors for the items and field_definitions collections.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Schema DDL. Both collections are keyed by an opaque string id.
const (
	createItems = `CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    display_name TEXT NOT NULL,
    size_label TEXT NOT NULL,
    type_label TEXT NOT NULL,
    created_label TEXT NOT NULL,
    custom_metadata TEXT NOT NULL
);`

	createFieldDefinitions = `CREATE TABLE IF NOT EXISTS field_definitions (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL
);`

	createSchemaVersion = `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);`
)

// schemaDDL lists every CREATE TABLE statement. All are idempotent so the
// same list serves first open and upgrades.
var schemaDDL = []string{
	createItems,
	createFieldDefinitions,
	createSchemaVersion,
}

// initSchema creates the collections on first open, upgrades an older
// database in place, and rejects a database written by a newer schema with
// a version conflict.
func initSchema(ctx context.Context, db *sql.DB, want int) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return Classify("check schema", "", err)
	}

	if tableExists == 0 {
		return applySchema(ctx, db, want, false)
	}

	var have int
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&have)
	if err == sql.ErrNoRows {
		return applySchema(ctx, db, want, false)
	}
	if err != nil {
		return Classify("read schema version", "", err)
	}

	switch {
	case have > want:
		return &types.StoreError{
			Op:   "open",
			Kind: types.KindVersionConflict,
			Err:  fmt.Errorf("%w: database has version %d, requested %d", types.ErrVersionConflict, have, want),
		}
	case have < want:
		return applySchema(ctx, db, want, true)
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB, version int, upgrade bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin schema", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ddl := range schemaDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return Classify("create schema", "", err)
		}
	}

	if upgrade {
		_, err = tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", version)
	} else {
		_, err = tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version)
	}
	if err != nil {
		return Classify("record schema version", "", err)
	}

	if err := tx.Commit(); err != nil {
		return Classify("commit schema", "", err)
	}
	return nil
}
