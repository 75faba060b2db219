package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/costhound/costhound/aggregate"
)

var (
	reportTop    int
	reportScanID string
)

var reportCmd = &cobra.Command{
	Use:   "report <account-id>",
	Short: "Summarize waste findings for one account",
	Long: `Summarize persisted waste findings for one account: totals by
scenario, region and status, plus the most expensive findings.`,
	Example: `  costhound report acct-prod
  costhound report acct-prod --top 20
  costhound report acct-prod --scan 6e1f...`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "How many top-cost findings to show")
	reportCmd.Flags().StringVar(&reportScanID, "scan", "", "Restrict the report to one scan id")
}

func runReport(cmd *cobra.Command, args []string) error {
	accountID := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	stats, err := a.eng.GetStatistics(ctx, reportScanID, accountID)
	if err != nil {
		return err
	}

	fmt.Printf("Waste report for %s\n\n", accountID)
	fmt.Printf("Findings:      %d\n", stats.TotalFindings)
	fmt.Printf("Monthly waste: %.2f %s\n", stats.TotalMonthlyCost, stats.Currency)
	fmt.Printf("Annual waste:  %.2f %s\n\n", stats.TotalAnnualCost, stats.Currency)

	if len(stats.ByType) > 0 {
		fmt.Println("By scenario:")
		for _, typ := range sortedKeys(stats.ByType) {
			fmt.Printf("  %-28s %d\n", typ, stats.ByType[typ])
		}
		fmt.Println()
	}
	if len(stats.ByRegion) > 0 {
		fmt.Println("By region:")
		for _, region := range sortedKeys(stats.ByRegion) {
			fmt.Printf("  %-28s %d\n", region, stats.ByRegion[region])
		}
		fmt.Println()
	}

	top, err := a.eng.GetTopCostFindings(ctx, accountID, reportTop)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("No findings. Run a scan first.")
		return nil
	}

	fmt.Printf("Top %d by monthly cost:\n", len(top))
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COST\tPRIORITY\tSCENARIO\tRESOURCE\tREGION")
	for _, f := range top {
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n",
			f.MonthlyCost, aggregate.PriorityFor(f.MonthlyCost), f.ResourceType, f.ResourceID, f.Region)
	}
	return w.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
