package main

import (
	"github.com/spf13/cobra"
)

var historyLimit int

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Generate one pulse and append it to the pulse chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		record, err := rt.generator.Pulse()
		if err != nil {
			return err
		}
		return writeJSON(record)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pulses in append order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		records, err := rt.generator.History(historyLimit)
		if err != nil {
			return err
		}
		return writeJSON(records)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "maximum pulses to show, 0 for all")
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(historyCmd)
}
