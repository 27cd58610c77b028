package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidahmann/chime/core/descriptor"
)

var createInput struct {
	processName      string
	processVersion   string
	capabilityLevel  int
	processOutcome   string
	pulseStartID     string
	pulseEndID       string
	aprioriRefs      []string
	aposterioriRefs  []string
	evidenceRequired []string
	evidenceProvided []string
	assessedBy       string
	method           string
	constraints      []string
	advisoryNotes    string
}

var (
	findPulseID string
	findRef     string
)

var descriptorCmd = &cobra.Command{
	Use:   "descriptor",
	Short: "Create and look up process descriptors",
}

var descriptorCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Validate and append one process descriptor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		record, err := rt.layer.Create(descriptor.Input{
			ProcessName:      createInput.processName,
			ProcessVersion:   createInput.processVersion,
			CapabilityLevel:  createInput.capabilityLevel,
			ProcessOutcome:   createInput.processOutcome,
			PulseStartID:     createInput.pulseStartID,
			PulseEndID:       createInput.pulseEndID,
			AprioriRefs:      createInput.aprioriRefs,
			AposterioriRefs:  createInput.aposterioriRefs,
			EvidenceRequired: createInput.evidenceRequired,
			EvidenceProvided: createInput.evidenceProvided,
			AssessedBy:       createInput.assessedBy,
			Method:           createInput.method,
			Constraints:      createInput.constraints,
			AdvisoryNotes:    createInput.advisoryNotes,
		})
		if err != nil {
			return err
		}
		return writeJSON(record)
	},
}

var descriptorGetCmd = &cobra.Command{
	Use:   "get <descriptor-id>",
	Short: "Fetch one descriptor by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		record, err := rt.layer.Get(args[0])
		if err != nil {
			return err
		}
		return writeJSON(record)
	},
}

var descriptorFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Find descriptors by pulse id or external reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (findPulseID == "") == (findRef == "") {
			return fmt.Errorf("exactly one of --pulse or --ref is required")
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		if findPulseID != "" {
			records, err := rt.layer.FindByPulse(findPulseID)
			if err != nil {
				return err
			}
			return writeJSON(records)
		}
		records, err := rt.layer.FindByRef(findRef)
		if err != nil {
			return err
		}
		return writeJSON(records)
	},
}

var descriptorReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the descriptor population by capability level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		return writeJSON(rt.layer.Report())
	},
}

func init() {
	flags := descriptorCreateCmd.Flags()
	flags.StringVar(&createInput.processName, "process", "", "process name")
	flags.StringVar(&createInput.processVersion, "version", "", "process version")
	flags.IntVar(&createInput.capabilityLevel, "level", 0, "capability level 0-5")
	flags.StringVar(&createInput.processOutcome, "outcome", "", "compliant, non_compliant or indeterminate")
	flags.StringVar(&createInput.pulseStartID, "start", "", "pulse range start id")
	flags.StringVar(&createInput.pulseEndID, "end", "", "pulse range end id")
	flags.StringSliceVar(&createInput.aprioriRefs, "apriori", nil, "a-priori vault references")
	flags.StringSliceVar(&createInput.aposterioriRefs, "aposteriori", nil, "a-posteriori vault references")
	flags.StringSliceVar(&createInput.evidenceRequired, "require", nil, "required evidence items")
	flags.StringSliceVar(&createInput.evidenceProvided, "provide", nil, "provided evidence items")
	flags.StringVar(&createInput.assessedBy, "assessed-by", "", "assessor identity")
	flags.StringVar(&createInput.method, "method", "", "assessment method")
	flags.StringSliceVar(&createInput.constraints, "constraint", nil, "declared constraints")
	flags.StringVar(&createInput.advisoryNotes, "notes", "", "advisory notes")

	descriptorFindCmd.Flags().StringVar(&findPulseID, "pulse", "", "pulse id to match against range endpoints")
	descriptorFindCmd.Flags().StringVar(&findRef, "ref", "", "external reference to match")

	descriptorCmd.AddCommand(descriptorCreateCmd)
	descriptorCmd.AddCommand(descriptorGetCmd)
	descriptorCmd.AddCommand(descriptorFindCmd)
	descriptorCmd.AddCommand(descriptorReportCmd)
	rootCmd.AddCommand(descriptorCmd)
}
