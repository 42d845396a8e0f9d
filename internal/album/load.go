package album

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// load emits fields then items. An empty or failed bulk read falls back to
// the ledger. Items are only healed against a field set that is known.
func (e *Engine) load(ctx context.Context) {
	fields, known := e.loadFields(ctx)
	for _, f := range fields {
		e.listener.FieldDefined(f.Clone())
	}

	items := e.loadItems(ctx)
	if known {
		e.sync.Resolve(ctx, items, types.FieldIDs(fields))
	} else {
		e.log.Warn("field set unknown, leaving item metadata untouched", zap.Int("items", len(items)))
	}
	for _, it := range items {
		e.remember(it)
		e.listener.ItemAvailable(it.Clone())
	}
	e.log.Info("album loaded", zap.Int("fields", len(fields)), zap.Int("items", len(items)))
}

// loadFields returns the field definitions and whether they are the
// complete set: read from the store, or recovered from the ledger. A failed
// read with an empty ledger is not.
func (e *Engine) loadFields(ctx context.Context) ([]*types.FieldDefinition, bool) {
	all, err := e.store.Fields.All(ctx)
	if err == nil && len(all) > 0 {
		if lerr := e.ledger.ReplaceFields(all); lerr != nil {
			e.log.Warn("ledger refresh failed", zap.Error(lerr))
		}
		return all, true
	}
	recovered := e.recoverFields(ctx, err)
	return recovered, err == nil || len(recovered) > 0
}

// recoverFields restores the mirrored definitions and writes them back to
// the primary store.
func (e *Engine) recoverFields(ctx context.Context, cause error) []*types.FieldDefinition {
	mirrored := e.ledger.Fields()
	if len(mirrored) == 0 {
		if cause != nil {
			e.log.Warn("field load failed, ledger empty", zap.Error(cause))
		}
		return nil
	}
	e.log.Info("recovering field definitions from ledger", zap.Int("fields", len(mirrored)), zap.Error(cause))
	for _, f := range mirrored {
		if err := e.store.Fields.Upsert(ctx, f.Clone()); err != nil {
			e.log.Warn("field re-persist failed", zap.String("id", f.ID), zap.Error(err))
		}
	}
	return mirrored
}

func (e *Engine) loadItems(ctx context.Context) []*types.Item {
	all, err := e.store.Items.All(ctx)
	if err == nil && len(all) > 0 {
		ids := make([]string, 0, len(all))
		for _, it := range all {
			ids = append(ids, it.ID)
		}
		if lerr := e.ledger.ReplaceItemIDs(ids); lerr != nil {
			e.log.Warn("ledger refresh failed", zap.Error(lerr))
		}
		return all
	}
	return e.recoverItems(ctx, err)
}

// recoverItems fetches each mirrored id on its own. Items found after an
// empty bulk read are written back. Only ids are mirrored, so items whose
// rows are gone cannot be recovered.
func (e *Engine) recoverItems(ctx context.Context, cause error) []*types.Item {
	ids := e.ledger.ItemIDs()
	if len(ids) == 0 {
		if cause != nil {
			e.log.Warn("item load failed, ledger empty", zap.Error(cause))
		}
		return nil
	}
	storeWasEmpty := cause == nil
	e.log.Info("recovering items from ledger", zap.Int("ids", len(ids)), zap.Error(cause))

	var recovered []*types.Item
	for _, id := range ids {
		it, found, err := e.store.Items.Get(ctx, id)
		if err != nil {
			e.log.Warn("item recovery read failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if !found {
			e.log.Debug("mirrored item missing from store", zap.String("id", id))
			continue
		}
		if storeWasEmpty {
			if err := e.store.Items.Upsert(ctx, it.Clone()); err != nil {
				e.log.Warn("item re-persist failed", zap.String("id", id), zap.Error(err))
			}
		}
		recovered = append(recovered, it)
	}
	return recovered
}
