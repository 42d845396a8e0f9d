package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/albumstore/internal/logging"
	"github.com/mesh-intelligence/albumstore/internal/paths"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyLogLevel  = "log_level"
	cfgKeyLogFormat = "log_format"

	envPrefix = "ALBUM"
)

// envKeys are the config keys ALBUM_* variables may set. data_dir is left
// out because ALBUM_DATA_DIR ranks below config.yaml.
var envKeys = []string{
	cfgKeyBackend, "db_name", "schema_version",
	"upsert_backoff", "max_upsert_attempts",
	"version_backoff", "max_version_attempts",
	"watchdog_timeout", "max_verify_attempts",
	cfgKeyLogLevel, cfgKeyLogFormat,
}

// configFile is the structure written to a fresh config.yaml.
type configFile struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	DBName    string `yaml:"db_name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

const configHeader = "# album CLI configuration\n# Durations use Go syntax, e.g. upsert_backoff: 1s\n\n"

// loadConfig reads config.yaml from the resolved config directory, creating
// a default one on first run, and returns the engine config with DataDir
// resolved. A missing config.yaml is not an error.
func loadConfig(configDirFlag, dataDirFlag string) (types.Config, logging.Options, error) {
	var logOpts logging.Options

	configDir, err := paths.ResolveConfigDir(configDirFlag)
	if err != nil {
		return types.Config{}, logOpts, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), dataDirFlag); err != nil {
		return types.Config{}, logOpts, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return types.Config{}, logOpts, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, logOpts, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, logOpts, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir, err = paths.ResolveDataDir(dataDirFlag, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, logOpts, fmt.Errorf("resolve data dir: %w", err)
	}

	logOpts.Level = v.GetString(cfgKeyLogLevel)
	logOpts.Format = v.GetString(cfgKeyLogFormat)
	return cfg, logOpts, nil
}

// writeConfigIfMissing creates config.yaml with default values. An existing
// file is left alone.
func writeConfigIfMissing(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		dataDir = abs
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	cfg := configFile{
		Backend:   types.BackendSQLite,
		DataDir:   dataDir,
		DBName:    types.DefaultDBName,
		LogLevel:  "warn",
		LogFormat: "console",
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o644)
}
