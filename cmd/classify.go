package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/classify"
	"github.com/nextier/copilot-engine/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Classify an inbound lead message",
	Long: `Classify an inbound SMS reply into a category and priority tier.

Obvious messages (opt-outs, clear interest, trailing questions) resolve
locally without a provider call; everything else goes through the
configured AI provider.

Examples:
  # Single message
  classify "Yes I'm interested, call me" --tenant acme --lead-name Dana

  # Batch, one message per line
  classify --file replies.txt --tenant acme`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.String("tenant", "", "tenant identifier for usage metering and limits")
	f.String("lead-name", "", "lead name for prompt context")
	f.String("company", "", "lead company for prompt context")
	f.String("campaign", "", "campaign label for prompt context")
	f.String("stage", "", "lead lifecycle stage (defaults to inbound_response)")
	f.String("file", "", "classify every line of a file instead of a single message")

	rootCmd.AddCommand(classifyCmd)
}

func classifyContext(cmd *cobra.Command) classify.Context {
	tenant, _ := cmd.Flags().GetString("tenant")
	leadName, _ := cmd.Flags().GetString("lead-name")
	company, _ := cmd.Flags().GetString("company")
	campaign, _ := cmd.Flags().GetString("campaign")
	stage, _ := cmd.Flags().GetString("stage")
	if stage == "" {
		stage = string(model.StageInboundResponse)
	}
	return classify.Context{
		TenantID: tenant,
		LeadName: leadName,
		Company:  company,
		Campaign: campaign,
		Stage:    model.Stage(stage),
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, closer, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer closer()

	c := classifyContext(cmd)
	file, _ := cmd.Flags().GetString("file")

	switch {
	case file != "":
		messages, err := readLines(file)
		if err != nil {
			return err
		}
		results, err := eng.Classifier().ClassifyBatch(ctx, messages, c)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: some messages failed: %v\n", err)
		}
		type line struct {
			Message string                      `json:"message"`
			Result  *model.ClassificationResult `json:"result"`
		}
		out := make([]line, len(messages))
		for i := range messages {
			out[i] = line{Message: messages[i], Result: results[i]}
		}
		return printJSON(cmd, out)

	case len(args) == 1:
		res, err := eng.Classifier().Classify(ctx, args[0], c)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)

	default:
		return eris.New("provide a message argument or --file")
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return lines, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
