package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/store"
	"github.com/nextier/copilot-engine/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect and control per-tenant AI usage",
	Long:  "Commands for usage summaries, quota limits, quota checks, and bulk usage import.",
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a tenant's usage for the current day or month",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		tenant, _ := cmd.Flags().GetString("tenant")
		period, _ := cmd.Flags().GetString("period")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tracker := usage.NewTracker(st, usage.MustPricing())
		summary, err := tracker.Summary(ctx, tenant, period)
		if err != nil {
			return err
		}
		return printJSON(cmd, summary)
	},
}

var usageCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the quota check a provider call would run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		tenant, _ := cmd.Flags().GetString("tenant")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tracker := usage.NewTracker(st, usage.MustPricing())
		return printJSON(cmd, tracker.CheckLimits(ctx, tenant))
	},
}

var usageLimitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Get or set a tenant's quota limits",
}

var usageLimitsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a tenant's configured limits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		tenant, _ := cmd.Flags().GetString("tenant")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limits, err := st.GetLimits(ctx, tenant)
		if err != nil {
			return err
		}
		if limits == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "no limits configured")
			return nil
		}
		return printJSON(cmd, limits)
	},
}

var usageLimitsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a tenant's quota limits",
	Long: `Set quota ceilings for a tenant. A ceiling of zero is not enforced.

Examples:
  usage limits set --tenant acme --daily-tokens 500000 --monthly-cost 250
  usage limits set --tenant acme --disabled`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()
		tenant, _ := f.GetString("tenant")
		dailyTokens, _ := f.GetInt64("daily-tokens")
		dailyRequests, _ := f.GetInt64("daily-requests")
		monthlyTokens, _ := f.GetInt64("monthly-tokens")
		monthlyRequests, _ := f.GetInt64("monthly-requests")
		monthlyCost, _ := f.GetFloat64("monthly-cost")
		disabled, _ := f.GetBool("disabled")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tracker := usage.NewTracker(st, usage.MustPricing())
		limits := model.UsageLimits{
			TenantID:            tenant,
			DailyTokenLimit:     dailyTokens,
			DailyRequestLimit:   dailyRequests,
			MonthlyTokenLimit:   monthlyTokens,
			MonthlyRequestLimit: monthlyRequests,
			MonthlyCostLimitUSD: monthlyCost,
			Enabled:             !disabled,
		}
		if err := tracker.SetLimits(ctx, limits); err != nil {
			return err
		}
		return printJSON(cmd, limits)
	},
}

var usageImportCmd = &cobra.Command{
	Use:   "import <rows.jsonl>",
	Short: "Bulk import daily usage rows",
	Long: `Import usage rows from a JSONL file, one daily aggregate per line.
Counters accumulate into existing rows, so re-importing a corrected
export adds on top rather than replacing.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsageImport,
}

func init() {
	usageCmd.PersistentFlags().String("tenant", "", "tenant identifier")
	usageSummaryCmd.Flags().String("period", "month", `summary window: "day" or "month"`)

	f := usageLimitsSetCmd.Flags()
	f.Int64("daily-tokens", 0, "daily token ceiling (0 = unenforced)")
	f.Int64("daily-requests", 0, "daily request ceiling (0 = unenforced)")
	f.Int64("monthly-tokens", 0, "monthly token ceiling (0 = unenforced)")
	f.Int64("monthly-requests", 0, "monthly request ceiling (0 = unenforced)")
	f.Float64("monthly-cost", 0, "monthly cost ceiling in USD (0 = unenforced)")
	f.Bool("disabled", false, "store the limits but do not enforce them")

	usageLimitsCmd.AddCommand(usageLimitsGetCmd)
	usageLimitsCmd.AddCommand(usageLimitsSetCmd)
	usageCmd.AddCommand(usageSummaryCmd)
	usageCmd.AddCommand(usageCheckCmd)
	usageCmd.AddCommand(usageLimitsCmd)
	usageCmd.AddCommand(usageImportCmd)
	rootCmd.AddCommand(usageCmd)
}

func runUsageImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	importer, ok := st.(store.BulkImporter)
	if !ok {
		return eris.New("configured store does not support bulk import")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return eris.Wrapf(err, "open %s", args[0])
	}
	defer f.Close() //nolint:errcheck

	var rows []store.DailyUsageRow
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		if text == "" {
			continue
		}
		var row store.DailyUsageRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return eris.Wrapf(err, "parse %s line %d", args[0], line)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return eris.Wrapf(err, "read %s", args[0])
	}

	n, err := importer.ImportDaily(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows\n", n)
	return nil
}
