package album

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/records"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func (e *Engine) defineField(ctx context.Context, f *types.FieldDefinition) {
	err := e.store.Fields.Create(ctx, f.Clone())
	if err != nil && !errors.Is(err, records.ErrRetrying) {
		e.log.Error("field create failed", zap.String("id", f.ID), zap.Error(err))
		return
	}
	e.listener.FieldDefined(f.Clone())

	// The fan-out runs as its own operation, after the definition write.
	if err := e.submit("fan-out define "+f.ID, func(ctx context.Context) {
		patched, err := e.sync.FieldDefined(ctx, f.ID)
		e.rememberAll(patched)
		if err != nil {
			e.log.Warn("field fan-out incomplete", zap.String("field", f.ID), zap.Error(err))
		}
	}); err != nil {
		e.log.Warn("field fan-out not scheduled", zap.String("field", f.ID), zap.Error(err))
	}
}

func (e *Engine) removeField(ctx context.Context, id string) {
	err := e.store.Fields.Delete(ctx, id)
	e.listener.FieldRemoved(id)
	if err != nil {
		// The definition is still stored; the next load re-emits it.
		e.log.Warn("field delete failed", zap.String("field", id), zap.Error(err))
		return
	}

	if err := e.submit("fan-out remove "+id, func(ctx context.Context) {
		patched, err := e.sync.FieldRemoved(ctx, id)
		e.rememberAll(patched)
		if err != nil {
			e.log.Warn("field fan-out incomplete", zap.String("field", id), zap.Error(err))
		}
	}); err != nil {
		e.log.Warn("field fan-out not scheduled", zap.String("field", id), zap.Error(err))
	}
}

// rememberAll updates the last-known-good copies of items already shown.
func (e *Engine) rememberAll(items []*types.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range items {
		if _, ok := e.shown[it.ID]; ok {
			e.shown[it.ID] = it.Clone()
		}
	}
}
