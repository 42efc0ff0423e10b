package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kostore/internal/app"
)

var locateCmd = &cobra.Command{
	Use:   "locate <dir>",
	Short: "Show which plugin directory an unpacked archive would install",
	Long: `Search dir for the first directory holding both main.lua and _meta.lua,
visiting sub-directories depth-first in name order, and print it together
with the folder name it would be installed as.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, name, err := app.Locate(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> plugins/%s\n", root, name)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins and patches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		k, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		inv, err := k.Installed()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Install root: %s\n", k.Config().InstallRoot)
		_, _ = fmt.Fprintf(out, "Plugins (%d):\n", len(inv.Plugins))
		for _, p := range inv.Plugins {
			_, _ = fmt.Fprintf(out, "  %s\n", p)
		}
		_, _ = fmt.Fprintf(out, "Patches (%d):\n", len(inv.Patches))
		for _, p := range inv.Patches {
			_, _ = fmt.Fprintf(out, "  %s\n", p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(listCmd)
}
