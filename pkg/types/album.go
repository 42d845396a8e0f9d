package types

import "context"

// Album is the surface the rendering layer drives. Mutations return as soon
// as the work is submitted; results arrive through the Listener.
type Album interface {
	// Start opens the primary store. Operations submitted before Start, or
	// while the store is not ready, are queued.
	Start(ctx context.Context) error

	// Load emits every stored field and item to the Listener, recovering
	// from the fallback ledger when the primary store comes back empty or
	// fails.
	Load(ctx context.Context) error

	// Items and Fields return snapshots of the primary store. They wait for
	// readiness like any other operation.
	Items(ctx context.Context) ([]*Item, error)
	Fields(ctx context.Context) ([]*FieldDefinition, error)

	CreateItem(ctx context.Context, item Item) (string, error)
	DeleteItem(ctx context.Context, id string) error
	DefineField(ctx context.Context, label string) (string, error)
	RemoveField(ctx context.Context, id string) error
	SetFieldValue(ctx context.Context, itemID, fieldID, value string) error

	// Settle blocks until every submitted operation, including scheduled
	// retries and fan-out passes, has run.
	Settle(ctx context.Context) error

	// Close flushes pending work and releases the store. Idempotent.
	Close() error
}

// NoticeKind identifies a user-visible storage failure.
type NoticeKind string

// The only interruptive failures. Each one needs a reload or other sessions
// to be closed.
const (
	NoticeOpenFailed  NoticeKind = "open_failed"
	NoticeBlocked     NoticeKind = "blocked"
	NoticeOutdated    NoticeKind = "outdated"
	NoticeUnavailable NoticeKind = "unavailable"
)

// Notice is a fatal storage message for the user.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

// Listener receives push notifications. Calls are serialized but may come
// from different goroutines; implementations must not block for long.
type Listener interface {
	ItemAvailable(item *Item)
	ItemRemoved(id string)
	FieldDefined(field *FieldDefinition)
	FieldRemoved(id string)
	StorageNotice(notice Notice)
}

// NopListener ignores every notification. Embed it to implement only the
// callbacks of interest.
type NopListener struct{}

func (NopListener) ItemAvailable(*Item)           {}
func (NopListener) ItemRemoved(string)            {}
func (NopListener) FieldDefined(*FieldDefinition) {}
func (NopListener) FieldRemoved(string)           {}
func (NopListener) StorageNotice(Notice)          {}
