package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize album storage",
		Long:  "Create the configuration and data directories and the album database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &collector{errOut: cmd.ErrOrStderr()}
			if err := a.withAlbum(cmd.Context(), c, func(types.Album) error { return nil }); err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Album initialized in %s\n", a.cfg.DataDir)
			return nil
		},
	}
}
