package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/costhound/costhound/storage"
	"github.com/costhound/costhound/types"
)

var (
	findingsScanID  string
	findingsType    string
	findingsStatus  string
	findingsMinCost float64
	findingsLimit   int
	findingsOffset  int
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Inspect and triage waste findings",
}

var findingsListCmd = &cobra.Command{
	Use:   "list <account-id>",
	Short: "List findings with filters and pagination",
	Example: `  costhound findings list acct-prod
  costhound findings list acct-prod --type ebs_unattached --min-cost 5
  costhound findings list acct-prod --status active --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runFindingsList,
}

var findingsStatusCmd = &cobra.Command{
	Use:   "set-status <finding-id> <status>",
	Short: "Record a decision on one finding",
	Long: `Record a decision on one finding. Valid statuses: active,
ignored, marked_for_deletion, deleted.`,
	Args: cobra.ExactArgs(2),
	RunE: runFindingsSetStatus,
}

func init() {
	rootCmd.AddCommand(findingsCmd)
	findingsCmd.AddCommand(findingsListCmd, findingsStatusCmd)

	findingsListCmd.Flags().StringVar(&findingsScanID, "scan", "", "Restrict to one scan id")
	findingsListCmd.Flags().StringVar(&findingsType, "type", "", "Restrict to one scenario")
	findingsListCmd.Flags().StringVar(&findingsStatus, "status", "", "Restrict to one status")
	findingsListCmd.Flags().Float64Var(&findingsMinCost, "min-cost", 0, "Minimum monthly cost")
	findingsListCmd.Flags().IntVar(&findingsLimit, "limit", 50, "Maximum rows")
	findingsListCmd.Flags().IntVar(&findingsOffset, "offset", 0, "Rows to skip")
}

func runFindingsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	findings, err := a.eng.ListFindings(cmd.Context(), storage.FindingFilter{
		ScanID:    findingsScanID,
		AccountID: args[0],
		Type:      findingsType,
		Status:    types.FindingStatus(findingsStatus),
		MinCost:   findingsMinCost,
		Limit:     findingsLimit,
		Offset:    findingsOffset,
	})
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Println("No findings match.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOST\tSTATUS\tCONFIDENCE\tREGION")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n",
			f.ID, f.MonthlyCost, f.Status, f.Metadata.Confidence, f.Region)
	}
	return w.Flush()
}

func runFindingsSetStatus(cmd *cobra.Command, args []string) error {
	status := types.FindingStatus(args[1])
	switch status {
	case types.FindingActive, types.FindingIgnored, types.FindingMarkedForDeletion, types.FindingDeleted:
	default:
		return fmt.Errorf("unknown status %q", args[1])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.eng.UpdateFindingStatus(cmd.Context(), args[0], status); err != nil {
		return err
	}
	fmt.Printf("Finding %s is now %s\n", args[0], status)
	return nil
}
