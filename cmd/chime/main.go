// Command chime maintains the two hash-chained ledgers: the pulse chain of
// multi-domain timestamps and the descriptor chain of process-maturity
// records. All command output is JSON on stdout; errors go to stderr with
// exit code 1.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidahmann/chime/core/config"
	"github.com/davidahmann/chime/core/descriptor"
	"github.com/davidahmann/chime/core/ledger"
	"github.com/davidahmann/chime/core/pulse"
)

var (
	configPath string
	storageDir string
	sourceNode string

	rootCmd = &cobra.Command{
		Use:           "chime",
		Short:         "Tamper-evident time-pulse and process-descriptor ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "project config path")
	rootCmd.PersistentFlags().StringVar(&storageDir, "dir", "", "override the storage directory")
	rootCmd.PersistentFlags().StringVar(&sourceNode, "node", "", "override the pulse source node name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chime:", err)
		os.Exit(1)
	}
}

func writeJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// runtime is the wired-up ledger state shared by the subcommands.
type runtime struct {
	config    config.Config
	generator *pulse.Generator
	layer     *descriptor.Layer
}

func openRuntime() (*runtime, error) {
	configuration, err := config.Load(configPath, true)
	if err != nil {
		return nil, err
	}
	if storageDir != "" {
		configuration.Storage.Dir = storageDir
	}
	node := configuration.Pulse.SourceNode
	if sourceNode != "" {
		node = sourceNode
	}

	pulseStore, err := ledger.Open(configuration.PulseLogPath())
	if err != nil {
		return nil, err
	}
	generator, err := pulse.NewGenerator(pulseStore, node)
	if err != nil {
		return nil, err
	}
	descriptorStore, err := ledger.Open(configuration.DescriptorLogPath())
	if err != nil {
		return nil, err
	}
	weights := configuration.Weights()
	layer, err := descriptor.NewLayer(descriptorStore, generator, descriptor.Options{
		Weights:   &weights,
		CachePath: configuration.IndexCachePath(),
	})
	if err != nil {
		return nil, err
	}
	return &runtime{config: configuration, generator: generator, layer: layer}, nil
}
