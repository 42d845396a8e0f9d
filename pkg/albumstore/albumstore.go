// Package albumstore is the public entry point to the album persistence
// engine. It hides the SQLite, queue, and ledger wiring behind types.Album.
package albumstore

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/album"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Version is the release version reported by the CLI.
const Version = "0.3.0"

// Option configures the engine returned by New.
type Option = album.Option

// WithListener sets the target of item, field, and storage notifications.
func WithListener(l types.Listener) Option { return album.WithListener(l) }

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option { return album.WithLogger(l) }

// New creates an album engine for cfg. The store is not opened until Start;
// operations submitted earlier wait in the queue.
//
// Example:
//
//	a, err := albumstore.New(types.DefaultConfig(".album-db"),
//	    albumstore.WithListener(ui))
//	if err != nil { ... }
//	defer a.Close()
//	_ = a.Start(ctx)
//	_ = a.Load(ctx)
func New(cfg types.Config, opts ...Option) (types.Album, error) {
	e, err := album.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return e, nil
}
