package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchVersion starts a goroutine that reacts to another session rewriting
// the version marker. The watcher stops when ctx is cancelled.
func (h *Handle) watchVersion(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: marker rewrites may replace the file.
	if err := w.Add(h.dataDir()); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", h.dataDir(), err)
	}
	go h.watchLoop(ctx, w)
	return nil
}

func (h *Handle) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	marker := filepath.Base(h.MarkerPath())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != marker || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			version, err := readVersionMarker(h.MarkerPath())
			if err != nil {
				// Partially written; the next write event carries the value.
				continue
			}
			if version == h.cfg.SchemaVersion {
				continue
			}
			h.versionChanged(version)
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.log.Warn("version watcher", zap.Error(err))
		}
	}
}

func writeVersionMarker(path string, version int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(version)+"\n"), 0o644)
}

func readVersionMarker(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
