package main

import (
	"github.com/spf13/cobra"

	"github.com/davidahmann/chime/core/audit"
	"github.com/davidahmann/chime/core/vault"
)

var (
	auditResolve  bool
	auditVaultDir string
)

// resolvedTrail augments a trail with vault content fetched on explicit
// request. The ledger itself never dereferences pointers; this is an edge
// concern of the CLI.
type resolvedTrail struct {
	audit.Trail
	Resolved map[string]string `json:"resolved_pointers,omitempty"`
	Missing  []string          `json:"missing_pointers,omitempty"`
}

var auditCmd = &cobra.Command{
	Use:   "audit <descriptor-id>",
	Short: "Reconstruct the audit trail for one descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		reconstructor := audit.NewReconstructor(rt.layer, rt.generator)
		trail, err := reconstructor.Reconstruct(args[0])
		if err != nil {
			return err
		}
		if !auditResolve {
			return writeJSON(trail)
		}

		reader := vault.NewDir(auditVaultDir)
		resolved := resolvedTrail{Trail: trail, Resolved: map[string]string{}}
		for _, pointer := range trail.Pointers {
			content, readErr := reader.Read(pointer)
			if readErr != nil {
				resolved.Missing = append(resolved.Missing, pointer)
				continue
			}
			resolved.Resolved[pointer] = string(content)
		}
		return writeJSON(resolved)
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditResolve, "resolve", false, "resolve vault pointers through a read-only vault directory")
	auditCmd.Flags().StringVar(&auditVaultDir, "vault-dir", "vault", "vault root directory used with --resolve")
	rootCmd.AddCommand(auditCmd)
}
