package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexus-automation/nexus/pkg/utils"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that local tools required to drive remote hosts are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := utils.NewCommandChecker()
			report, err := checker.CheckDependencies(utils.GetCommonDependencies("nexus"))
			if err != nil {
				return fmt.Errorf("checking prerequisites: %w", err)
			}
			fmt.Print(report.String())
			if !report.AllRequiredPresent {
				return fmt.Errorf("missing required local tools")
			}
			return nil
		},
	}
}
