package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/costhound/costhound/types"
)

var scanKind string

var scanCmd = &cobra.Command{
	Use:   "scan <account-id>",
	Short: "Run a waste scan against one cloud account",
	Long: `Run a full waste scan against one cloud account.

The scan enumerates candidate resources region by region, classifies
them against the account's rule set, prices each match, and persists
the findings. The command blocks until the scan reaches a terminal
state.`,
	Example: `  costhound scan acct-prod
  costhound scan acct-prod --kind full_inventory
  costhound scan acct-prod --config costhound.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanKind, "kind", string(types.ScanKindAdHoc), "Scan kind (ad_hoc, scheduled, full_inventory)")
}

func runScan(cmd *cobra.Command, args []string) error {
	accountID := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	job, err := a.eng.CreateScan(ctx, accountID, types.ScanKind(scanKind))
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s (scan %s)...\n", accountID, job.ID)

	runErr := a.eng.RunScan(ctx, job.ID)

	job, err = a.eng.GetScan(ctx, job.ID)
	if err != nil {
		return err
	}

	fmt.Printf("\nStatus:             %s\n", job.Status)
	fmt.Printf("Resources examined: %d\n", job.ResourcesExamined)
	fmt.Printf("Findings:           %d\n", job.FindingsCount)
	fmt.Printf("Monthly waste:      %.2f %s\n", job.EstimatedMonthlyWaste, job.Currency)
	for region, msg := range job.RegionErrors {
		fmt.Printf("Region %s failed:   %s\n", region, msg)
	}
	if job.ErrorSummary != "" {
		fmt.Printf("Error:              %s\n", job.ErrorSummary)
	}

	return runErr
}
