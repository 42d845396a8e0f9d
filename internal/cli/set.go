package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <item-id> <field-id> <value>",
		Short: "Set a field value on an item",
		Long: `Set stores one metadata value. Setting a value on an item that no longer
exists does nothing.

Example:
  album set 0190f3c2-... 0190f3c4-... Paris`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) error {
				return alb.SetFieldValue(cmd.Context(), args[0], args[1], args[2])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s on %s\n", args[1], args[0])
			return nil
		},
	}
}
