package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func newFieldCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage metadata field definitions",
	}
	cmd.AddCommand(newFieldDefineCmd(a), newFieldListCmd(a), newFieldRemoveCmd(a))
	return cmd
}

func newFieldDefineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "define <label>",
		Short: "Define a metadata field on every item",
		Long: `Define creates a field and adds it, with an empty value, to every stored item.

Example:
  album field define Location`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) (err error) {
				id, err = alb.DefineField(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Defined field %s\n", id)
			return nil
		},
	}
}

func newFieldListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List field definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields []*types.FieldDefinition
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) (err error) {
				fields, err = alb.Fields(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			sort.SliceStable(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), fields)
			}
			if len(fields) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No fields defined.")
				return nil
			}
			rows := make([][]string, 0, len(fields))
			for _, f := range fields {
				rows = append(rows, []string{f.ID, f.Label})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "LABEL"}, rows)
			return nil
		},
	}
}

func newFieldRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a field definition and its values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) error {
				return alb.RemoveField(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed field %s\n", args[0])
			return nil
		},
	}
}
