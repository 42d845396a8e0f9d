package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// noticeRecorder collects notices from any goroutine.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []types.Notice
}

func (r *noticeRecorder) record(n types.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) all() []types.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notice(nil), r.notices...)
}

func testConfig(dir string) types.Config {
	cfg := types.DefaultConfig(dir)
	cfg.VersionBackoff = 10 * time.Millisecond
	return cfg
}

// openHandle returns a Ready handle on a fresh directory, closed on cleanup.
func openHandle(t *testing.T) (*Handle, *noticeRecorder) {
	t.Helper()
	rec := &noticeRecorder{}
	h := NewHandle(testConfig(t.TempDir()), WithNotifier(rec.record))
	require.NoError(t, h.Open(context.Background()))
	t.Cleanup(func() { _ = h.Close() })
	return h, rec
}
