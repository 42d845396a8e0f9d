// Package schemasync keeps every item's custom metadata in step with the
// field definitions. Changes fan out as a scan-and-patch over the items
// collection: each item is read, patched, and upserted on its own, so a
// partial pass is possible and is healed by the next pass or the next load.
package schemasync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/records"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Items is the part of the items collection the synchronizer needs.
type Items interface {
	Get(ctx context.Context, id string) (*types.Item, bool, error)
	All(ctx context.Context) ([]*types.Item, error)
	Upsert(ctx context.Context, it *types.Item) error
}

// Synchronizer patches items after field changes.
type Synchronizer struct {
	items Items
	log   *zap.Logger
}

// New returns a Synchronizer over items.
func New(items Items, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{items: items, log: log.Named("schemasync")}
}

// FieldDefined adds fieldID with an empty value to every item that lacks it.
// It returns the patched items.
func (s *Synchronizer) FieldDefined(ctx context.Context, fieldID string) ([]*types.Item, error) {
	return s.patchAll(ctx, "field defined", fieldID, func(it *types.Item) bool {
		if it.HasField(fieldID) {
			return false
		}
		it.SetMetadata(fieldID, "")
		return true
	})
}

// FieldRemoved drops fieldID from every item that carries it. It returns
// the patched items.
func (s *Synchronizer) FieldRemoved(ctx context.Context, fieldID string) ([]*types.Item, error) {
	return s.patchAll(ctx, "field removed", fieldID, func(it *types.Item) bool {
		return it.RemoveMetadata(fieldID)
	})
}

func (s *Synchronizer) patchAll(ctx context.Context, event, fieldID string, patch func(*types.Item) bool) ([]*types.Item, error) {
	log := s.log.With(zap.String("event", event), zap.String("field", fieldID))
	all, err := s.items.All(ctx)
	if err != nil {
		log.Warn("fan-out scan failed", zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", event, fieldID, err)
	}

	var (
		patched []*types.Item
		errs    []error
	)
	for _, cur := range all {
		it := cur.Clone()
		if !patch(it) {
			continue
		}
		if err := s.upsert(ctx, it); err != nil {
			log.Warn("fan-out patch failed", zap.String("item", it.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		patched = append(patched, it)
	}
	log.Debug("fan-out complete", zap.Int("items", len(all)), zap.Int("patched", len(patched)))
	return patched, errors.Join(errs...)
}

// ValueSet stores value under fieldID on the item with itemID. A missing
// item makes this a logged no-op that returns nil, nil.
func (s *Synchronizer) ValueSet(ctx context.Context, itemID, fieldID, value string) (*types.Item, error) {
	log := s.log.With(zap.String("item", itemID), zap.String("field", fieldID))
	cur, found, err := s.items.Get(ctx, itemID)
	if err != nil {
		log.Warn("value set read failed", zap.Error(err))
		return nil, fmt.Errorf("set %s on %s: %w", fieldID, itemID, err)
	}
	if !found {
		log.Info("value set on missing item ignored")
		return nil, nil
	}
	it := cur.Clone()
	it.SetMetadata(fieldID, value)
	if err := s.upsert(ctx, it); err != nil {
		log.Warn("value set write failed", zap.Error(err))
		return nil, fmt.Errorf("set %s on %s: %w", fieldID, itemID, err)
	}
	return it, nil
}

// Resolve makes each item's metadata match fieldIDs exactly and upserts the
// items that changed. Items are patched in place.
func (s *Synchronizer) Resolve(ctx context.Context, items []*types.Item, fieldIDs []string) (healed int) {
	for _, it := range items {
		if !it.ResolveMetadata(fieldIDs) {
			continue
		}
		healed++
		if err := s.upsert(ctx, it.Clone()); err != nil {
			s.log.Warn("metadata heal failed", zap.String("item", it.ID), zap.Error(err))
		}
	}
	if healed > 0 {
		s.log.Info("healed item metadata", zap.Int("items", healed))
	}
	return healed
}

// upsert treats a scheduled retry as success; the queue owns it from there.
func (s *Synchronizer) upsert(ctx context.Context, it *types.Item) error {
	err := s.items.Upsert(ctx, it)
	if errors.Is(err, records.ErrRetrying) {
		return nil
	}
	return err
}
