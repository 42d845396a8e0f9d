package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

func newItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Add, list, and delete album items",
	}
	cmd.AddCommand(newItemAddCmd(a), newItemListCmd(a), newItemDeleteCmd(a))
	return cmd
}

func newItemAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Store files as album items",
		Long: `Add reads each file, encodes it as a data URI, and stores it as a new
item. Every currently defined field is added to the item with an empty value.

Example:
  album item add beach.jpg
  album item add photos/*.png --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]types.Item, 0, len(args))
			for _, path := range args {
				it, err := readItem(path)
				if err != nil {
					return err
				}
				items = append(items, it)
			}

			var ids []string
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) error {
				for _, it := range items {
					id, err := alb.CreateItem(cmd.Context(), it)
					if err != nil {
						return fmt.Errorf("create item %s: %w", it.DisplayName, err)
					}
					ids = append(ids, id)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), ids)
			}
			for i, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s, %s): %s\n", items[i].DisplayName, items[i].TypeLabel, items[i].SizeLabel, id)
			}
			return nil
		},
	}
}

// listing is the JSON shape of item list.
type listing struct {
	Fields []*types.FieldDefinition `json:"fields"`
	Items  []*types.Item            `json:"items"`
}

func newItemListCmd(a *app) *cobra.Command {
	var withContent bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List album items with their field values",
		Long: `List loads the album the way a viewer would: field definitions first, then
items, recovering from the fallback ledger when the database comes back empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) error {
				return alb.Load(cmd.Context())
			})
			if err != nil {
				return err
			}

			c.mu.Lock()
			out := listing{Fields: c.fields, Items: c.items}
			c.mu.Unlock()
			sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
			if !withContent {
				for _, it := range out.Items {
					it.Content = ""
				}
			}

			if a.jsonMode {
				if out.Fields == nil {
					out.Fields = []*types.FieldDefinition{}
				}
				if out.Items == nil {
					out.Items = []*types.Item{}
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			if len(out.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No items found.")
				return nil
			}
			printItemTable(cmd, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withContent, "content", false, "include the encoded content in JSON output")
	return cmd
}

func printItemTable(cmd *cobra.Command, l listing) {
	headers := []string{"ID", "NAME", "SIZE", "TYPE", "CREATED"}
	for _, f := range l.Fields {
		headers = append(headers, strings.ToUpper(f.Label))
	}
	rows := make([][]string, 0, len(l.Items))
	for _, it := range l.Items {
		row := []string{it.ID, it.DisplayName, it.SizeLabel, it.TypeLabel, it.CreatedLabel}
		for _, f := range l.Fields {
			row = append(row, it.CustomMetadata[f.ID])
		}
		rows = append(rows, row)
	}
	renderTable(cmd.OutOrStdout(), headers, rows)
}

func newItemDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &collector{errOut: cmd.ErrOrStderr()}
			err := a.withAlbum(cmd.Context(), c, func(alb types.Album) error {
				return alb.DeleteItem(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %s\n", args[0])
			return nil
		},
	}
}
