// Package cli implements the album command-line interface: a small intake
// and inspection front end over the album persistence engine.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/albumstore/internal/logging"
	"github.com/mesh-intelligence/albumstore/pkg/albumstore"
	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds the global flags and the state PersistentPreRunE loads for the
// subcommands.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string

	cfg types.Config
	log *zap.Logger
}

// NewRootCmd creates the top-level "album" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "album",
		Short:         "Local photo album storage",
		Long:          "Album stores photos and user-defined metadata fields in a local SQLite\ndatabase with a JSONL fallback ledger.",
		Version:       albumstore.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/album)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/album)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default: warn)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newItemCmd(a))
	root.AddCommand(newFieldCmd(a))
	root.AddCommand(newSetCmd(a))
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode maps bad input to exitUserError and everything else to
// exitSysError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidLabel),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}

var errUsage = errors.New("usage")

// setup resolves directories, loads config.yaml, and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, logOpts, err := loadConfig(a.configDir, a.dataDir)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		logOpts.Level = a.logLevel
	}
	log, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	a.cfg, a.log = cfg, log
	return nil
}
