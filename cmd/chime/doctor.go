package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidahmann/chime/core/ledger"
	"github.com/davidahmann/chime/core/schema/validate"
)

// doctorCheck is one named health check result.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type doctorReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []doctorCheck `json:"checks"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check chain integrity, schema conformance and storage health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}

		report := doctorReport{Healthy: true}
		add := func(name string, err error) {
			check := doctorCheck{Name: name, OK: err == nil}
			if err != nil {
				check.Detail = err.Error()
				report.Healthy = false
			}
			report.Checks = append(report.Checks, check)
		}

		add("pulse chain integrity", verifyClean(cmd, rt.generator.Store()))
		add("descriptor chain integrity", verifyClean(cmd, rt.layer.Store()))
		add("pulse log tail", rt.generator.Store().TailWarning())
		add("descriptor log tail", rt.layer.Store().TailWarning())
		add("pulse schema conformance", validateLog(rt.generator.Store().Path(), validate.PulseJSONL))
		add("descriptor schema conformance", validateLog(rt.layer.Store().Path(), validate.DescriptorJSONL))
		add("index coverage", indexCovers(rt.layer.Index().Count(), rt.layer.Store().Count()))

		if err := writeJSON(report); err != nil {
			return err
		}
		if !report.Healthy {
			return fmt.Errorf("%d check(s) failed", failedCount(report))
		}
		return nil
	},
}

func verifyClean(cmd *cobra.Command, store *ledger.Store) error {
	report, err := store.Verify(cmd.Context())
	if err != nil {
		return err
	}
	if report.Status != ledger.StatusClean {
		return fmt.Errorf("%s with %d violation(s)", report.Status, len(report.Violations))
	}
	return nil
}

func validateLog(path string, check func([]byte) error) error {
	// #nosec G304 -- log path comes from the project config.
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return check(content)
}

func indexCovers(indexed, logged uint64) error {
	if indexed != logged {
		return fmt.Errorf("index holds %d of %d records", indexed, logged)
	}
	return nil
}

func failedCount(report doctorReport) int {
	failed := 0
	for _, check := range report.Checks {
		if !check.OK {
			failed++
		}
	}
	return failed
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
