package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/cadence"
	"github.com/nextier/copilot-engine/internal/model"
)

var cadenceCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Inspect the 30-day outreach loop",
	Long:  "Commands for checking a lead's loop position and planning upcoming touches.",
}

var cadenceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a lead's position in the loop",
	Long: `Compute the cadence state for a loop start date: current day, next
touch, channel, and whether the loop is complete.

Examples:
  cadence status --loop-start 2026-08-01
  cadence status --loop-start 2026-08-01 --touches 4 --stage outbound_sms`,
	RunE: runCadenceStatus,
}

var cadencePlanCmd = &cobra.Command{
	Use:   "plan <leads.json>",
	Short: "Group leads by their next touch day",
	Long: `Read a JSON array of leads and print the touch plan: which leads share
each upcoming touch day and over which channel. Leads in nurture, won,
or lost and leads past the lifecycle are excluded.`,
	Args: cobra.ExactArgs(1),
	RunE: runCadencePlan,
}

var cadenceDueCmd = &cobra.Command{
	Use:   "due <leads.json>",
	Short: "List leads whose next touch date has arrived",
	Args:  cobra.ExactArgs(1),
	RunE:  runCadenceDue,
}

func init() {
	f := cadenceStatusCmd.Flags()
	f.String("loop-start", "", "loop start date (YYYY-MM-DD, required)")
	f.Int("touches", 0, "touches already sent")
	f.String("stage", string(model.StageOutboundSMS), "lead lifecycle stage")
	_ = cadenceStatusCmd.MarkFlagRequired("loop-start")

	cadenceCmd.AddCommand(cadenceStatusCmd)
	cadenceCmd.AddCommand(cadencePlanCmd)
	cadenceCmd.AddCommand(cadenceDueCmd)
	rootCmd.AddCommand(cadenceCmd)
}

func runCadenceStatus(cmd *cobra.Command, _ []string) error {
	loopStart, _ := cmd.Flags().GetString("loop-start")
	touches, _ := cmd.Flags().GetInt("touches")
	stage, _ := cmd.Flags().GetString("stage")

	start, err := time.Parse("2006-01-02", loopStart)
	if err != nil {
		return eris.Wrapf(err, "parse --loop-start %q", loopStart)
	}

	schedule, err := cadence.Load()
	if err != nil {
		return err
	}
	lead := model.Lead{
		Stage:         model.Stage(stage),
		LoopStartDate: &start,
		TouchCount:    touches,
	}
	return printJSON(cmd, schedule.State(lead, time.Now()))
}

func runCadencePlan(cmd *cobra.Command, args []string) error {
	leads, err := readLeads(args[0])
	if err != nil {
		return err
	}
	schedule, err := cadence.Load()
	if err != nil {
		return err
	}
	return printJSON(cmd, schedule.Plan(leads, time.Now()))
}

func runCadenceDue(cmd *cobra.Command, args []string) error {
	leads, err := readLeads(args[0])
	if err != nil {
		return err
	}
	schedule, err := cadence.Load()
	if err != nil {
		return err
	}
	return printJSON(cmd, schedule.DueForTouch(leads, time.Now()))
}

func readLeads(path string) ([]model.Lead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	var leads []model.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	return leads, nil
}
