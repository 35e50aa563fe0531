package main

import (
	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/model"
)

var decideCmd = &cobra.Command{
	Use:   "decide <message>",
	Short: "Classify a message and route the lead",
	Long: `Run the full engine for one inbound message: classify it, decide the
action, pick the next stage and worker, and draft a reply when the
decision is to auto-respond.

Examples:
  decide "Yes I'm interested, call me" --lead-id l42 --stage outbound_sms
  decide "how much does it cost?" --stage inbound_response --tenant acme`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

func init() {
	f := decideCmd.Flags()
	f.String("tenant", "", "tenant identifier for usage metering and limits")
	f.String("lead-id", "", "lead identifier")
	f.String("lead-name", "", "lead name for prompt context")
	f.String("company", "", "lead company for prompt context")
	f.String("campaign", "", "campaign label for prompt context")
	f.String("stage", string(model.StageInboundResponse), "lead lifecycle stage")
	f.String("worker", "", "currently assigned worker persona")

	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, closer, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer closer()

	leadID, _ := cmd.Flags().GetString("lead-id")
	stage, _ := cmd.Flags().GetString("stage")
	worker, _ := cmd.Flags().GetString("worker")
	lead := model.Lead{
		ID:             leadID,
		Stage:          model.Stage(stage),
		AssignedWorker: model.Worker(worker),
	}

	c := classifyContext(cmd)
	c.Stage = lead.Stage

	dec, err := eng.Process(ctx, lead, args[0], c)
	if err != nil {
		return err
	}
	return printJSON(cmd, dec)
}
