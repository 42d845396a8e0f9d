package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/albumstore/pkg/albumstore"
)

const modulePath = "github.com/mesh-intelligence/albumstore"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the album version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "album v%s\nmodule: %s\n", albumstore.Version, modulePath)
			return nil
		},
	}
}
