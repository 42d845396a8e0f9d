// Package album is the persistence engine behind the photo album. It wires
// the SQLite handle, the operation queue, the record façade, the fallback
// ledger, and the schema synchronizer together and exposes the operations
// the rendering layer drives.
//
// Every mutation is submitted to the operation queue and returns at once.
// Work runs in submission order on the queue's worker once the store is
// ready; results are pushed to the Listener.
package album

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/ledger"
	"github.com/mesh-intelligence/albumstore/internal/opqueue"
	"github.com/mesh-intelligence/albumstore/internal/records"
	"github.com/mesh-intelligence/albumstore/internal/schemasync"
	"github.com/mesh-intelligence/albumstore/internal/sqlite"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithListener sets the notification target. The default drops everything.
func WithListener(l types.Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listener.target = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// withItemsTable wraps the items table; tests use it to inject store faults.
func withItemsTable(wrap func(records.Table[*types.Item]) records.Table[*types.Item]) Option {
	return func(e *Engine) { e.wrapItems = wrap }
}

// withFieldsTable wraps the field definitions table.
func withFieldsTable(wrap func(records.Table[*types.FieldDefinition]) records.Table[*types.FieldDefinition]) Option {
	return func(e *Engine) { e.wrapFields = wrap }
}

// Engine implements types.Album.
type Engine struct {
	cfg        types.Config
	log        *zap.Logger
	listener   *serialListener
	wrapItems  func(records.Table[*types.Item]) records.Table[*types.Item]
	wrapFields func(records.Table[*types.FieldDefinition]) records.Table[*types.FieldDefinition]

	handle *sqlite.Handle
	queue  *opqueue.Queue
	ledger *ledger.Ledger
	store  *records.Store
	sync   *schemasync.Synchronizer

	mu     sync.Mutex
	shown  map[string]*types.Item
	closed bool
}

var _ types.Album = (*Engine)(nil)

// New builds an engine for cfg. Nothing touches the database until Start.
func New(cfg types.Config, opts ...Option) (*Engine, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		log:      zap.NewNop(),
		listener: &serialListener{target: types.NopListener{}},
		shown:    make(map[string]*types.Item),
	}
	for _, opt := range opts {
		opt(e)
	}

	lg, err := ledger.Open(cfg.DataDir, cfg.DBName, ledger.WithLogger(e.log))
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	e.ledger = lg

	e.handle = sqlite.NewHandle(cfg, sqlite.WithLogger(e.log), sqlite.WithNotifier(e.notice))
	e.queue = opqueue.New(e.reopen, cfg.WatchdogTimeout, opqueue.WithLogger(e.log))
	e.handle.OnReadiness(e.queue.SetReady)

	var items records.Table[*types.Item] = sqlite.NewItemsTable(e.handle)
	if e.wrapItems != nil {
		items = e.wrapItems(items)
	}
	var fields records.Table[*types.FieldDefinition] = sqlite.NewFieldsTable(e.handle)
	if e.wrapFields != nil {
		fields = e.wrapFields(fields)
	}
	e.store = records.NewStore(items, fields, lg, e.queue, cfg, e.log)
	e.sync = schemasync.New(e.store.Items, e.log)
	e.log = e.log.Named("album")
	return e, nil
}

// Config returns the normalized configuration.
func (e *Engine) Config() types.Config { return e.cfg }

// Ready reports whether the primary store is open.
func (e *Engine) Ready() bool { return e.handle.Ready() }

// Start opens the primary store. Open failures have already been pushed to
// the Listener as notices when Start returns them.
func (e *Engine) Start(ctx context.Context) error {
	if e.isClosed() {
		return types.ErrClosed
	}
	return e.handle.Open(ctx)
}

// Load pushes every field definition and item to the Listener, fields
// first. It waits for the store to become ready or for ctx to end.
func (e *Engine) Load(ctx context.Context) error {
	return e.await(ctx, "load", func(ctx context.Context) error {
		e.load(ctx)
		return nil
	})
}

// Items returns a snapshot of the items collection.
func (e *Engine) Items(ctx context.Context) ([]*types.Item, error) {
	var out []*types.Item
	err := e.await(ctx, "list items", func(ctx context.Context) (err error) {
		out, err = e.store.Items.All(ctx)
		return err
	})
	return out, err
}

// Fields returns a snapshot of the field definitions.
func (e *Engine) Fields(ctx context.Context) ([]*types.FieldDefinition, error) {
	var out []*types.FieldDefinition
	err := e.await(ctx, "list fields", func(ctx context.Context) (err error) {
		out, err = e.store.Fields.All(ctx)
		return err
	})
	return out, err
}

// CreateItem queues the item for storage and returns its id. A blank id is
// replaced with a new one; an existing id is overwritten. The item's
// metadata is resolved against the fields defined when the write runs.
func (e *Engine) CreateItem(ctx context.Context, item types.Item) (string, error) {
	if strings.TrimSpace(item.Content) == "" {
		return "", fmt.Errorf("create item: %w: empty content", types.ErrInvalidData)
	}
	it := item.Clone()
	if it.ID == "" {
		it.ID = types.NewID()
	}
	if err := e.submit("create item "+it.ID, func(ctx context.Context) { e.createItem(ctx, it) }); err != nil {
		return "", err
	}
	return it.ID, nil
}

// DeleteItem queues removal of the item. The Listener is told the item is
// gone even when the store delete fails; failed deletes are not retried.
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	return e.submit("delete item "+id, func(ctx context.Context) {
		e.forget(id)
		if err := e.store.Items.Delete(ctx, id); err != nil {
			e.log.Warn("item delete failed", zap.String("id", id), zap.Error(err))
		}
		e.listener.ItemRemoved(id)
	})
}

// DefineField queues a new field definition and returns its id. Once the
// definition is stored, every item gains the field with an empty value.
func (e *Engine) DefineField(ctx context.Context, label string) (string, error) {
	label, err := types.NormalizeLabel(label)
	if err != nil {
		return "", err
	}
	f := &types.FieldDefinition{ID: types.NewID(), Label: label}
	if err := e.submit("define field "+f.ID, func(ctx context.Context) { e.defineField(ctx, f) }); err != nil {
		return "", err
	}
	return f.ID, nil
}

// RemoveField queues removal of the field definition and of its values from
// every item.
func (e *Engine) RemoveField(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	return e.submit("remove field "+id, func(ctx context.Context) { e.removeField(ctx, id) })
}

// SetFieldValue queues an update of one metadata value. Setting a value on
// an item that no longer exists is a no-op.
func (e *Engine) SetFieldValue(ctx context.Context, itemID, fieldID, value string) error {
	if itemID == "" || fieldID == "" {
		return types.ErrInvalidID
	}
	return e.submit("set value "+itemID, func(ctx context.Context) {
		it, err := e.sync.ValueSet(ctx, itemID, fieldID, value)
		if err != nil {
			return
		}
		if it != nil {
			e.remember(it)
		}
	})
}

// Settle waits until every submitted operation has run, including scheduled
// retries and fan-out passes.
func (e *Engine) Settle(ctx context.Context) error {
	if err := e.queue.Settle(ctx); err != nil {
		if errors.Is(err, opqueue.ErrClosed) {
			return types.ErrClosed
		}
		return err
	}
	return nil
}

// Close drains the queue if the store is ready, then closes the store.
// Calling Close again is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.queue.Close()
	return e.handle.Close()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) submit(name string, op opqueue.Op) error {
	if e.isClosed() {
		return types.ErrClosed
	}
	if err := e.queue.Submit(name, op); err != nil {
		if errors.Is(err, opqueue.ErrClosed) {
			return types.ErrClosed
		}
		return err
	}
	return nil
}

// await runs fn on the queue and waits for it.
func (e *Engine) await(ctx context.Context, name string, fn func(context.Context) error) error {
	done := make(chan error, 1)
	if err := e.submit(name, func(ctx context.Context) { done <- fn(ctx) }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reopen is the queue watchdog's recovery. A store held by another session
// stays closed until Start is called again.
func (e *Engine) reopen(ctx context.Context) error {
	if e.handle.Blocked() {
		e.log.Debug("store held by another session, not reopening")
		return &types.StoreError{Op: "reopen", Kind: types.KindBlocked, Err: types.ErrBlocked}
	}
	return e.handle.Open(ctx)
}

func (e *Engine) notice(n types.Notice) {
	e.log.Error("storage notice", zap.String("kind", string(n.Kind)), zap.String("message", n.Message), zap.Error(n.Err))
	e.listener.StorageNotice(n)
}

func (e *Engine) remember(it *types.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shown[it.ID] = it.Clone()
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.shown, id)
}

// lastKnownGood returns the copy the Listener was last given for id.
func (e *Engine) lastKnownGood(id string) *types.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shown[id].Clone()
}

// serialListener forwards to target one call at a time.
type serialListener struct {
	mu     sync.Mutex
	target types.Listener
}

func (s *serialListener) ItemAvailable(it *types.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.ItemAvailable(it)
}

func (s *serialListener) ItemRemoved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.ItemRemoved(id)
}

func (s *serialListener) FieldDefined(f *types.FieldDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.FieldDefined(f)
}

func (s *serialListener) FieldRemoved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.FieldRemoved(id)
}

func (s *serialListener) StorageNotice(n types.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.StorageNotice(n)
}
