package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mesh-intelligence/albumstore/pkg/albumstore"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// collector keeps what Load pushes and prints storage notices.
type collector struct {
	types.NopListener
	errOut io.Writer

	mu     sync.Mutex
	items  []*types.Item
	fields []*types.FieldDefinition
}

func (c *collector) ItemAvailable(it *types.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, it)
}

func (c *collector) FieldDefined(f *types.FieldDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = append(c.fields, f)
}

func (c *collector) StorageNotice(n types.Notice) {
	fmt.Fprintf(c.errOut, "storage: %s\n", n.Message)
}

// withAlbum opens the album, runs fn, waits for queued work to finish, and
// closes the album.
func (a *app) withAlbum(ctx context.Context, c *collector, fn func(types.Album) error) (err error) {
	alb, err := albumstore.New(a.cfg, albumstore.WithListener(c), albumstore.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := alb.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close album: %w", cerr)
		}
	}()

	if err := alb.Start(ctx); err != nil {
		return fmt.Errorf("open album: %w", err)
	}
	if err := fn(alb); err != nil {
		return err
	}
	return alb.Settle(ctx)
}
