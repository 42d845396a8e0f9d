package records

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/ledger"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Store pairs the two album collections.
type Store struct {
	Items  *Facade[*types.Item]
	Fields *Facade[*types.FieldDefinition]
}

// NewStore wires both collections to the same scheduler and ledger.
func NewStore(items Table[*types.Item], fields Table[*types.FieldDefinition], lg *ledger.Ledger, sched Scheduler, cfg types.Config, log *zap.Logger) *Store {
	policy := Policy{Backoff: cfg.UpsertBackoff, MaxAttempts: cfg.MaxUpsertAttempts}
	var (
		im Mirror[*types.Item]
		fm Mirror[*types.FieldDefinition]
	)
	if lg != nil {
		im = ItemMirror{lg}
		fm = FieldMirror{lg}
	}
	return &Store{
		Items:  New(items, im, sched, policy, log),
		Fields: New(fields, fm, sched, policy, log),
	}
}

// ItemMirror mirrors item ids only.
type ItemMirror struct{ Ledger *ledger.Ledger }

func (m ItemMirror) Refresh(it *types.Item) error { return m.Ledger.RefreshItem(it.ID) }
func (m ItemMirror) Forget(id string) error       { return m.Ledger.ForgetItem(id) }

// FieldMirror mirrors full field definitions.
type FieldMirror struct{ Ledger *ledger.Ledger }

func (m FieldMirror) Refresh(f *types.FieldDefinition) error { return m.Ledger.RefreshField(f) }
func (m FieldMirror) Forget(id string) error                 { return m.Ledger.ForgetField(id) }
