package commands

import (
	"fmt"
	"os"

	"hashdex/pkg/exporter"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [index.json] [id]",
	Short: "Print an index file as a tree, or one entry by id or storage name",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open index: %w", err)
		}
		defer f.Close()

		root, err := exporter.ReadIndex(f)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			return exporter.PrintTree(cmd.OutOrStdout(), root)
		}
		e := exporter.Find(root, args[1])
		if e == nil {
			return fmt.Errorf("no entry with id or storage name %q", args[1])
		}
		exporter.PrintEntry(cmd.OutOrStdout(), e)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
