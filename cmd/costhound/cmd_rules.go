package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/costhound/costhound/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage per-account waste detection rules",
	Long: `Manage per-account waste detection rules.

Every scenario ships with a system default. Overrides replace the
default for one account; resetting deletes the override and the default
takes effect again.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list [account-id]",
	Short: "Show effective rule sets, defaults or one account's view",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesList,
}

var (
	ruleEnabled     bool
	ruleMinIdleDays int
	ruleMinAgeDays  int
	ruleMinSizeGB   int64
	ruleCPUPct      float64
	ruleUtilPct     float64
	ruleMinUntagged int
)

var rulesSetCmd = &cobra.Command{
	Use:   "set <account-id> <scenario>",
	Short: "Override one scenario's rule set for an account",
	Example: `  costhound rules set acct-prod ebs_idle --enabled --min-idle-days 45
  costhound rules set acct-prod ec2_idle --enabled=false`,
	Args: cobra.ExactArgs(2),
	RunE: runRulesSet,
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset <account-id> [scenario]",
	Short: "Delete an account's override, or all of them",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRulesReset,
}

var rulesApplyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Apply a YAML overrides document",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesApply,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesSetCmd, rulesResetCmd, rulesApplyCmd)

	rulesSetCmd.Flags().BoolVar(&ruleEnabled, "enabled", true, "Whether the scenario fires at all")
	rulesSetCmd.Flags().IntVar(&ruleMinIdleDays, "min-idle-days", 0, "Minimum idle days before a match")
	rulesSetCmd.Flags().IntVar(&ruleMinAgeDays, "min-age-days", 0, "Minimum resource age in days")
	rulesSetCmd.Flags().Int64Var(&ruleMinSizeGB, "min-size-gb", 0, "Minimum size in GB")
	rulesSetCmd.Flags().Float64Var(&ruleCPUPct, "cpu-threshold-pct", 0, "CPU p95 at or below this counts as idle")
	rulesSetCmd.Flags().Float64Var(&ruleUtilPct, "utilization-threshold-pct", 0, "Utilization at or below this counts as overprovisioned")
	rulesSetCmd.Flags().IntVar(&ruleMinUntagged, "min-untagged-images", 0, "Minimum untagged image count")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	accountID := ""
	if len(args) == 1 {
		accountID = args[0]
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	for _, sc := range rules.AllScenarios() {
		rs, ok, err := a.eng.Registry().Resolve(ctx, accountID, sc)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		encoded, err := json.Marshal(rs)
		if err != nil {
			return err
		}
		fmt.Printf("%-28s %s\n", sc, encoded)
	}
	return nil
}

func runRulesSet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rs := rules.RuleSet{
		Enabled:                 ruleEnabled,
		MinIdleDays:             ruleMinIdleDays,
		MinAgeDays:              ruleMinAgeDays,
		MinSizeGB:               ruleMinSizeGB,
		CPUThresholdPct:         ruleCPUPct,
		UtilizationThresholdPct: ruleUtilPct,
		MinUntaggedImages:       ruleMinUntagged,
	}
	if err := a.eng.UpsertRule(cmd.Context(), args[0], args[1], rs); err != nil {
		return err
	}

	fmt.Printf("Override stored for %s/%s\n", args[0], args[1])
	return nil
}

func runRulesReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scenario := ""
	if len(args) == 2 {
		scenario = args[1]
	}
	if err := a.eng.ResetRule(cmd.Context(), args[0], scenario); err != nil {
		return err
	}

	if scenario == "" {
		fmt.Printf("All overrides reset for %s\n", args[0])
	} else {
		fmt.Printf("Override reset for %s/%s\n", args[0], scenario)
	}
	return nil
}

func runRulesApply(cmd *cobra.Command, args []string) error {
	file, err := rules.LoadOverridesFile(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := file.Apply(cmd.Context(), a.eng.Registry()); err != nil {
		return err
	}

	fmt.Printf("Applied overrides for %d owner(s)\n", len(file.Owners))
	return nil
}
