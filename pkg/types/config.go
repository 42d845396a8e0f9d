package types

import (
	"errors"
	"time"
)

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Defaults applied by DefaultConfig and Normalize.
const (
	DefaultDBName             = "album"
	DefaultSchemaVersion      = 1
	DefaultUpsertBackoff      = time.Second
	DefaultMaxUpsertAttempts  = 10
	DefaultVersionBackoff     = 500 * time.Millisecond
	DefaultMaxVersionAttempts = 3
	DefaultWatchdogTimeout    = 3 * time.Second
	DefaultMaxVerifyAttempts  = 2
)

// Config holds backend selection and the timing parameters of the engine.
// Zero durations and counts are replaced with defaults by Normalize.
type Config struct {
	Backend       string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir       string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	DBName        string `json:"db_name" yaml:"db_name" mapstructure:"db_name"`
	SchemaVersion int    `json:"schema_version" yaml:"schema_version" mapstructure:"schema_version"`

	// UpsertBackoff is the fixed delay between failed upsert attempts.
	UpsertBackoff     time.Duration `json:"upsert_backoff" yaml:"upsert_backoff" mapstructure:"upsert_backoff"`
	MaxUpsertAttempts int           `json:"max_upsert_attempts" yaml:"max_upsert_attempts" mapstructure:"max_upsert_attempts"`

	// VersionBackoff is the delay between destroying a conflicting database
	// and opening a fresh one.
	VersionBackoff     time.Duration `json:"version_backoff" yaml:"version_backoff" mapstructure:"version_backoff"`
	MaxVersionAttempts int           `json:"max_version_attempts" yaml:"max_version_attempts" mapstructure:"max_version_attempts"`

	// WatchdogTimeout is how long queued operations wait for readiness
	// before the queue re-invokes open.
	WatchdogTimeout time.Duration `json:"watchdog_timeout" yaml:"watchdog_timeout" mapstructure:"watchdog_timeout"`

	MaxVerifyAttempts int `json:"max_verify_attempts" yaml:"max_verify_attempts" mapstructure:"max_verify_attempts"`
}

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrDBNameEmpty          = errors.New("database name must not be empty")
	ErrSchemaVersionInvalid = errors.New("schema version must be positive")
	ErrBackoffInvalid       = errors.New("backoff and timeout durations must be positive")
	ErrAttemptsInvalid      = errors.New("attempt limits must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// DefaultConfig returns a SQLite configuration rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{Backend: BackendSQLite, DataDir: dataDir}.Normalize()
}

// Normalize returns a copy of c with every zero field set to its default.
// Backend and DataDir are left untouched.
func (c Config) Normalize() Config {
	if c.DBName == "" {
		c.DBName = DefaultDBName
	}
	if c.SchemaVersion == 0 {
		c.SchemaVersion = DefaultSchemaVersion
	}
	if c.UpsertBackoff == 0 {
		c.UpsertBackoff = DefaultUpsertBackoff
	}
	if c.MaxUpsertAttempts == 0 {
		c.MaxUpsertAttempts = DefaultMaxUpsertAttempts
	}
	if c.VersionBackoff == 0 {
		c.VersionBackoff = DefaultVersionBackoff
	}
	if c.MaxVersionAttempts == 0 {
		c.MaxVersionAttempts = DefaultMaxVersionAttempts
	}
	if c.WatchdogTimeout == 0 {
		c.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if c.MaxVerifyAttempts == 0 {
		c.MaxVerifyAttempts = DefaultMaxVerifyAttempts
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.DBName == "" {
		return ErrDBNameEmpty
	}
	if c.SchemaVersion < 1 {
		return ErrSchemaVersionInvalid
	}
	if c.UpsertBackoff <= 0 || c.VersionBackoff <= 0 || c.WatchdogTimeout <= 0 {
		return ErrBackoffInvalid
	}
	if c.MaxUpsertAttempts < 1 || c.MaxVersionAttempts < 1 || c.MaxVerifyAttempts < 1 {
		return ErrAttemptsInvalid
	}
	return nil
}
