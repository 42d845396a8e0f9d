package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/albumstore/internal/paths"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func TestLoadConfigWritesDefault(t *testing.T) {
	t.Setenv(paths.EnvDataDir, "")
	configDir := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "data")

	cfg, logOpts, err := loadConfig(configDir, dataDir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, cfg.Backend)
	assert.Equal(t, types.DefaultDBName, cfg.DBName)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "warn", logOpts.Level)
	assert.Equal(t, "console", logOpts.Format)

	_, err = os.Stat(filepath.Join(configDir, "config.yaml"))
	assert.NoError(t, err)
}

func TestLoadConfigPrecedence(t *testing.T) {
	configDir := t.TempDir()
	fromFile := filepath.Join(t.TempDir(), "from-file")
	yaml := "backend: sqlite\ndata_dir: " + fromFile + "\ndb_name: photos\nupsert_backoff: 250ms\nmax_upsert_attempts: 4\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv(paths.EnvDataDir, filepath.Join(t.TempDir(), "from-env"))
	t.Setenv("ALBUM_DB_NAME", "vacation")
	t.Setenv("ALBUM_WATCHDOG_TIMEOUT", "5s")

	cfg, _, err := loadConfig(configDir, "")
	require.NoError(t, err)
	assert.Equal(t, fromFile, cfg.DataDir, "config.yaml beats ALBUM_DATA_DIR")
	assert.Equal(t, "vacation", cfg.DBName, "env beats config.yaml for engine keys")
	assert.Equal(t, 250*time.Millisecond, cfg.UpsertBackoff)
	assert.Equal(t, 4, cfg.MaxUpsertAttempts)
	assert.Equal(t, 5*time.Second, cfg.WatchdogTimeout)

	flagDir := filepath.Join(t.TempDir(), "from-flag")
	cfg, _, err = loadConfig(configDir, flagDir)
	require.NoError(t, err)
	assert.Equal(t, flagDir, cfg.DataDir, "flag beats everything")
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("backend: [unclosed"), 0o644))
	_, _, err := loadConfig(configDir, "")
	assert.Error(t, err)
}

func TestReadItem(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	tests := []struct {
		name     string
		path     string
		wantType string
		wantSize string
	}{
		{name: "extension", path: write("a.png", pngHeader), wantType: "image/png", wantSize: "12 B"},
		{name: "sniffed text", path: write("notes", []byte("hello album")), wantType: "text/plain", wantSize: "11 B"},
		{name: "sniffed png", path: write("raw", pngHeader), wantType: "image/png", wantSize: "12 B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := readItem(tt.path)
			require.NoError(t, err)
			assert.Equal(t, filepath.Base(tt.path), it.DisplayName)
			assert.Equal(t, tt.wantType, it.TypeLabel)
			assert.Equal(t, tt.wantSize, it.SizeLabel)
			assert.Contains(t, it.Content, "data:"+tt.wantType+";base64,")
			assert.NotEmpty(t, it.CreatedLabel)
			assert.Empty(t, it.ID)
		})
	}

	_, err := readItem(write("empty", nil))
	assert.ErrorIs(t, err, types.ErrInvalidData)
}
