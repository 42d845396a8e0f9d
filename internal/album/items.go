package album

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/records"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// createItem writes it, tells the Listener, then verifies the write.
func (e *Engine) createItem(ctx context.Context, it *types.Item) {
	if ids, ok := e.currentFieldIDs(ctx); ok {
		it.ResolveMetadata(ids)
	}

	err := e.store.Items.Create(ctx, it.Clone())
	retrying := errors.Is(err, records.ErrRetrying)
	if err != nil && !retrying {
		e.log.Error("item create failed", zap.String("id", it.ID), zap.Error(err))
		return
	}

	e.remember(it)
	e.listener.ItemAvailable(it.Clone())
	if !retrying {
		e.verify(ctx, it.ID)
	}
}

// currentFieldIDs reads the defined fields, falling back to the ledger. It
// reports false when neither source can say which fields exist.
func (e *Engine) currentFieldIDs(ctx context.Context) ([]string, bool) {
	fields, err := e.store.Fields.All(ctx)
	if err == nil {
		return types.FieldIDs(fields), true
	}
	fields = e.ledger.Fields()
	if len(fields) == 0 {
		e.log.Warn("field read failed and ledger is empty, keeping item metadata as given", zap.Error(err))
		return nil, false
	}
	e.log.Warn("field read failed, using ledger", zap.Error(err))
	return types.FieldIDs(fields), true
}

// verify re-reads the item and rewrites it from the last copy handed to the
// Listener when the stored record is missing or differs. It gives up after
// MaxVerifyAttempts rewrites.
func (e *Engine) verify(ctx context.Context, id string) {
	log := e.log.With(zap.String("id", id))
	for rewrite := 0; ; rewrite++ {
		want := e.lastKnownGood(id)
		if want == nil {
			return
		}
		got, found, err := e.store.Items.Get(ctx, id)
		if err != nil {
			log.Warn("verification read failed", zap.Error(err))
			return
		}
		if found && got.Equal(want) {
			if rewrite > 0 {
				log.Info("item restored after verification", zap.Int("rewrites", rewrite))
			}
			return
		}
		if rewrite >= e.cfg.MaxVerifyAttempts {
			log.Error("item verification failed", zap.Int("rewrites", rewrite), zap.Bool("found", found))
			return
		}
		log.Warn("stored item does not match, rewriting", zap.Bool("found", found))
		err = e.store.Items.Upsert(ctx, want)
		if errors.Is(err, records.ErrRetrying) {
			return
		}
		if err != nil {
			log.Error("verification rewrite failed", zap.Error(err))
			return
		}
	}
}
