package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered recipes and cookbooks",
		Long: `List the built-in recipes and cookbooks together with those loaded from
the settings' recipe_dir. A script named like a built-in recipe replaces it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Kind", "Name", "Recipes"})
			for _, name := range ws.registry.CookbookNames() {
				cb, err := ws.registry.Cookbook(name)
				if err != nil {
					return err
				}
				t.AppendRow(table.Row{"cookbook", name, strings.Join(cb.Recipes, ", ")})
			}
			t.AppendSeparator()
			for _, name := range ws.registry.RecipeNames() {
				t.AppendRow(table.Row{"recipe", name, ""})
			}
			t.Render()
			return nil
		},
	}

	return cmd
}
