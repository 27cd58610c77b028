package main

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the derived lookup indexes",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the descriptor index from a full log scan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		if err := rt.layer.RebuildIndex(); err != nil {
			return err
		}
		return writeJSON(map[string]any{
			"rebuilt":      true,
			"record_count": rt.layer.Index().Count(),
		})
	},
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}
