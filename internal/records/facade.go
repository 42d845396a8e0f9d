// Package records is the typed CRUD layer over the album collections. It
// turns duplicate creates into upserts, retries failed writes through the
// operation queue, and keeps the fallback ledger in step with every
// successful mutation.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/opqueue"
	"github.com/mesh-intelligence/albumstore/internal/sqlite"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// ErrRetrying reports that a write failed and a retry has been scheduled.
var ErrRetrying = errors.New("write failed, retry scheduled")

// Table is the store-level collection a Facade drives.
type Table[T sqlite.Record] interface {
	Name() string
	Insert(ctx context.Context, rec T) error
	Put(ctx context.Context, rec T) error
	Get(ctx context.Context, id string) (T, error)
	All(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, id string) error
}

// Mirror receives successful mutations for the fallback ledger.
type Mirror[T sqlite.Record] interface {
	Refresh(rec T) error
	Forget(id string) error
}

// Scheduler runs retries. *opqueue.Queue satisfies it.
type Scheduler interface {
	Submit(name string, op opqueue.Op) error
	SubmitAfter(delay time.Duration, name string, op opqueue.Op) error
}

// Policy bounds write retries.
type Policy struct {
	Backoff     time.Duration
	MaxAttempts int
}

// Facade wraps one collection. Records handed to Create or Upsert are kept
// for retries, so callers must not mutate them afterwards.
type Facade[T sqlite.Record] struct {
	table  Table[T]
	mirror Mirror[T]
	sched  Scheduler
	policy Policy
	log    *zap.Logger
}

// New builds a Facade. A nil mirror disables ledger refreshes.
func New[T sqlite.Record](table Table[T], mirror Mirror[T], sched Scheduler, policy Policy, log *zap.Logger) *Facade[T] {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Facade[T]{
		table:  table,
		mirror: mirror,
		sched:  sched,
		policy: policy,
		log:    log.Named("records").With(zap.String("collection", table.Name())),
	}
}

// Collection returns the collection name.
func (f *Facade[T]) Collection() string { return f.table.Name() }

// Create inserts rec. An existing id turns the create into an upsert, so
// the second write wins and no duplicate error reaches the caller.
func (f *Facade[T]) Create(ctx context.Context, rec T) error {
	err := f.table.Insert(ctx, rec)
	switch types.KindOf(err) {
	case "":
		f.refresh(rec)
		return nil
	case types.KindDuplicateKey, types.KindConstraintViolation:
		f.log.Debug("record exists, upserting", zap.String("id", rec.RecordID()))
		return f.Upsert(ctx, rec)
	}
	return f.retry(rec, 1, err)
}

// Upsert inserts or replaces rec. On failure the identical write is retried
// after the backoff, up to Policy.MaxAttempts in total; the returned error
// then wraps ErrRetrying. Fatal errors are returned without a retry. A retry that finds the store not ready waits in
// the queue without using up an attempt.
func (f *Facade[T]) Upsert(ctx context.Context, rec T) error {
	return f.put(ctx, rec, 1)
}

func (f *Facade[T]) put(ctx context.Context, rec T, attempt int) error {
	err := f.table.Put(ctx, rec)
	if err == nil {
		f.refresh(rec)
		return nil
	}
	return f.retry(rec, attempt, err)
}

func (f *Facade[T]) retry(rec T, attempt int, cause error) error {
	id := rec.RecordID()
	name := fmt.Sprintf("upsert %s %s", f.table.Name(), id)
	run := func(next int) opqueue.Op {
		return func(ctx context.Context) {
			if err := f.put(ctx, rec, next); err != nil && !errors.Is(err, ErrRetrying) {
				f.log.Error("write abandoned", zap.String("id", id), zap.Error(err))
			}
		}
	}

	var err error
	switch kind := types.KindOf(cause); {
	case kind == types.KindFatal:
		f.log.Error("write failed, not retryable", zap.String("id", id), zap.Error(cause))
		return cause
	case kind == types.KindNotReady:
		f.log.Debug("store not ready, requeueing write", zap.String("id", id))
		err = f.sched.Submit(name, run(attempt))
	case attempt >= f.policy.MaxAttempts:
		f.log.Error("write failed, giving up",
			zap.String("id", id), zap.Int("attempts", attempt), zap.Error(cause))
		return cause
	default:
		f.log.Warn("write failed, retrying",
			zap.String("id", id), zap.Int("attempt", attempt), zap.Duration("backoff", f.policy.Backoff), zap.Error(cause))
		err = f.sched.SubmitAfter(f.policy.Backoff, name, run(attempt+1))
	}
	if err != nil {
		return errors.Join(cause, err)
	}
	return fmt.Errorf("%w: %w", ErrRetrying, cause)
}

// Get returns the record with id. A missing record is reported through
// found, not as an error.
func (f *Facade[T]) Get(ctx context.Context, id string) (rec T, found bool, err error) {
	rec, err = f.table.Get(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// All returns every record in the collection.
func (f *Facade[T]) All(ctx context.Context) ([]T, error) {
	return f.table.All(ctx)
}

// Delete removes id and trims it from the ledger. Failures are logged and
// returned but never retried.
func (f *Facade[T]) Delete(ctx context.Context, id string) error {
	if err := f.table.Delete(ctx, id); err != nil {
		f.log.Warn("delete failed", zap.String("id", id), zap.Error(err))
		return err
	}
	if f.mirror != nil {
		if err := f.mirror.Forget(id); err != nil {
			f.log.Warn("ledger trim failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

func (f *Facade[T]) refresh(rec T) {
	if f.mirror == nil {
		return
	}
	if err := f.mirror.Refresh(rec); err != nil {
		f.log.Warn("ledger refresh failed", zap.String("id", rec.RecordID()), zap.Error(err))
	}
}
