package cli

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// readItem turns a file into an Item: the content becomes a base64 data URI
// and the labels are filled from the file's name, size, type, and mtime.
func readItem(path string) (types.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Item{}, fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.Item{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if len(data) == 0 {
		return types.Item{}, fmt.Errorf("%s: %w: empty file", path, types.ErrInvalidData)
	}

	mediaType := detectType(path, data)
	return types.Item{
		Content:      "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
		DisplayName:  filepath.Base(path),
		SizeLabel:    humanize.Bytes(uint64(len(data))),
		TypeLabel:    mediaType,
		CreatedLabel: info.ModTime().Format(time.DateTime),
	}, nil
}

// detectType prefers the extension and falls back to content sniffing.
// Parameters such as charset are dropped.
func detectType(path string, data []byte) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		t = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}
