package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// State is the lifecycle position of a Handle.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// User-facing notice texts.
const (
	msgOpenFailed  = "The album storage could not be opened. Changes will not be saved in this session; reload to try again."
	msgBlocked     = "The album storage is in use by another session. Close other sessions, then reload."
	msgOutdated    = "The album storage was upgraded by another session. Reload to continue."
	msgUnavailable = "The album storage could not be recreated after a version conflict. Reload to try again."
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout = 5000",
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.log = l
		}
	}
}

// WithNotifier sets the receiver of user-visible storage notices.
func WithNotifier(fn func(types.Notice)) Option {
	return func(h *Handle) {
		if fn != nil {
			h.notify = fn
		}
	}
}

// Handle owns the single connection to the primary store. It moves through
// Closed -> Opening -> Ready, back to Closed on teardown, and to the terminal
// Unavailable state once version-conflict recovery is exhausted. Readiness
// changes are pushed to OnReadiness subscribers.
type Handle struct {
	cfg    types.Config
	log    *zap.Logger
	notify func(types.Notice)
	lock   *flock.Flock

	// attemptOpen performs a single connection attempt.
	attemptOpen func(ctx context.Context) (*sql.DB, error)

	mu        sync.RWMutex
	state     State
	blocked   bool
	db        *sql.DB
	stopWatch context.CancelFunc
	listeners []func(ready bool)
}

// NewHandle creates a closed Handle for cfg. Call Open to connect.
func NewHandle(cfg types.Config, opts ...Option) *Handle {
	h := &Handle{
		cfg:    cfg,
		log:    zap.NewNop(),
		notify: func(types.Notice) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("store")
	h.lock = flock.New(h.LockPath())
	h.attemptOpen = h.openOnce
	return h
}

func (h *Handle) dataDir() string {
	if h.cfg.DataDir == "" {
		return "."
	}
	return h.cfg.DataDir
}

// DBPath is the SQLite database file.
func (h *Handle) DBPath() string {
	return filepath.Join(h.dataDir(), h.cfg.DBName+".db")
}

// LockPath is the session lock file.
func (h *Handle) LockPath() string {
	return filepath.Join(h.dataDir(), h.cfg.DBName+".lock")
}

// MarkerPath is the file recording the schema version the current session
// runs, or the version a blocked session is waiting for.
func (h *Handle) MarkerPath() string {
	return filepath.Join(h.dataDir(), h.cfg.DBName+".version")
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Ready reports whether operations can run.
func (h *Handle) Ready() bool {
	return h.State() == StateReady
}

// Blocked reports whether the last open was refused because another session
// holds the store. It clears on the next successful open.
func (h *Handle) Blocked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.blocked
}

// OnReadiness registers fn to be called on every readiness transition.
// Calls happen outside the Handle's lock.
func (h *Handle) OnReadiness(fn func(ready bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Open connects to the store at the configured schema version. It is a no-op
// while Opening or Ready. A version conflict destroys the database and
// retries after VersionBackoff, at most MaxVersionAttempts times, before the
// Handle turns Unavailable. A blocked or otherwise failed open leaves the
// Handle Closed. Every path that gives up emits a notice.
func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case StateOpening, StateReady:
		h.mu.Unlock()
		return nil
	case StateUnavailable:
		h.mu.Unlock()
		return &types.StoreError{Op: "open", Kind: types.KindUnavailable, Err: types.ErrUnavailable}
	}
	h.state = StateOpening
	h.mu.Unlock()

	for attempt := 1; ; attempt++ {
		db, err := h.attemptOpen(ctx)
		if err == nil {
			h.becomeReady(db)
			return nil
		}

		switch types.KindOf(err) {
		case types.KindVersionConflict:
			if attempt >= h.cfg.MaxVersionAttempts {
				h.setState(StateUnavailable)
				h.log.Error("version conflict recovery exhausted", zap.Int("attempts", attempt), zap.Error(err))
				h.notify(types.Notice{Kind: types.NoticeUnavailable, Message: msgUnavailable, Err: err})
				return err
			}
			h.log.Warn("schema version conflict, recreating database",
				zap.Int("attempt", attempt), zap.String("path", h.DBPath()), zap.Error(err))
			if derr := h.Destroy(); derr != nil {
				h.log.Warn("destroy database", zap.Error(derr))
			}
			select {
			case <-time.After(h.cfg.VersionBackoff):
			case <-ctx.Done():
				h.setState(StateClosed)
				return ctx.Err()
			}
		case types.KindBlocked:
			h.mu.Lock()
			h.blocked = true
			h.mu.Unlock()
			h.setState(StateClosed)
			h.log.Warn("store blocked by another session", zap.String("lock", h.LockPath()))
			h.notify(types.Notice{Kind: types.NoticeBlocked, Message: msgBlocked, Err: err})
			return err
		default:
			h.setState(StateClosed)
			h.log.Error("open store", zap.String("path", h.DBPath()), zap.Error(err))
			h.notify(types.Notice{Kind: types.NoticeOpenFailed, Message: msgOpenFailed, Err: err})
			return err
		}
	}
}

// openOnce takes the session lock, opens the database and brings its schema
// to the configured version.
func (h *Handle) openOnce(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(h.dataDir(), 0o755); err != nil {
		return nil, &types.StoreError{Op: "open", Kind: types.KindFatal, Err: err}
	}

	ok, err := h.lock.TryLock()
	if err != nil {
		return nil, &types.StoreError{Op: "lock", Kind: types.KindFatal, Err: err}
	}
	if !ok {
		// Ask the session holding the lock to step aside.
		if werr := writeVersionMarker(h.MarkerPath(), h.cfg.SchemaVersion); werr != nil {
			h.log.Warn("request version change", zap.Error(werr))
		}
		return nil, &types.StoreError{Op: "lock", Kind: types.KindBlocked, Err: types.ErrBlocked}
	}

	db, err := sql.Open("sqlite", h.DBPath())
	if err != nil {
		_ = h.lock.Unlock()
		return nil, Classify("open", "", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			_ = h.lock.Unlock()
			return nil, Classify("apply pragma", "", err)
		}
	}
	if err := initSchema(ctx, db, h.cfg.SchemaVersion); err != nil {
		_ = db.Close()
		_ = h.lock.Unlock()
		return nil, err
	}
	return db, nil
}

func (h *Handle) becomeReady(db *sql.DB) {
	if err := writeVersionMarker(h.MarkerPath(), h.cfg.SchemaVersion); err != nil {
		h.log.Warn("write version marker", zap.Error(err))
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	if err := h.watchVersion(watchCtx); err != nil {
		h.log.Warn("version watcher unavailable", zap.Error(err))
	}

	h.mu.Lock()
	h.db = db
	h.state = StateReady
	h.blocked = false
	h.stopWatch = cancel
	listeners := append([]func(bool){}, h.listeners...)
	h.mu.Unlock()

	h.log.Info("store ready", zap.String("path", h.DBPath()), zap.Int("version", h.cfg.SchemaVersion))
	for _, fn := range listeners {
		fn(true)
	}
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// versionChanged tears the connection down after another session asked for
// a different schema version.
func (h *Handle) versionChanged(version int) {
	h.mu.Lock()
	if h.state != StateReady {
		h.mu.Unlock()
		return
	}
	db, stop := h.db, h.stopWatch
	h.db, h.stopWatch = nil, nil
	h.state = StateClosed
	listeners := append([]func(bool){}, h.listeners...)
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	if err := db.Close(); err != nil {
		h.log.Warn("close store after version change", zap.Error(err))
	}
	if err := h.lock.Unlock(); err != nil {
		h.log.Warn("release session lock", zap.Error(err))
	}

	h.log.Warn("schema version changed by another session",
		zap.Int("ours", h.cfg.SchemaVersion), zap.Int("requested", version))
	for _, fn := range listeners {
		fn(false)
	}
	h.notify(types.Notice{
		Kind:    types.NoticeOutdated,
		Message: msgOutdated,
		Err:     fmt.Errorf("%w: another session requested version %d", types.ErrVersionConflict, version),
	})
}

// conn returns the open database or a NotReady error.
func (h *Handle) conn(op, collection string) (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateReady || h.db == nil {
		return nil, &types.StoreError{Op: op, Collection: collection, Kind: types.KindNotReady, Err: types.ErrNotReady}
	}
	return h.db, nil
}

// Destroy deletes the database files. It refuses while the Handle is Ready.
func (h *Handle) Destroy() error {
	if h.Ready() {
		return errors.New("cannot destroy an open store")
	}
	var errs error
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(h.DBPath() + suffix); err != nil && !os.IsNotExist(err) {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Close releases the connection, the version watcher and the session lock.
// Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	wasReady := h.state == StateReady
	db, stop := h.db, h.stopWatch
	h.db, h.stopWatch = nil, nil
	if h.state != StateUnavailable {
		h.state = StateClosed
	}
	listeners := append([]func(bool){}, h.listeners...)
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	var errs error
	if db != nil {
		errs = errors.Join(errs, db.Close())
	}
	errs = errors.Join(errs, h.lock.Unlock())

	if wasReady {
		for _, fn := range listeners {
			fn(false)
		}
	}
	return errs
}
