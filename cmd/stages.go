package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/stages"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Inspect the stage copilot registry",
	Long:  "Commands for listing lifecycle stages, their owning workers, and per-stage copilot detail.",
}

var stagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stage and its workers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := stages.Load()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tPRIMARY\tSUPPORT\tPRIORITY\tNAME")
		for _, c := range reg.All() {
			support := ""
			for i, s := range c.SupportWorkers {
				if i > 0 {
					support += ","
				}
				support += string(s)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Stage, c.PrimaryWorker, support, c.Priority, c.Name)
		}
		return w.Flush()
	},
}

var stagesShowCmd = &cobra.Command{
	Use:   "show <stage>",
	Short: "Show the full copilot definition for one stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := stages.Load()
		if err != nil {
			return err
		}
		return printJSON(cmd, reg.ForStage(model.Stage(args[0])))
	},
}

var stagesWorkerCmd = &cobra.Command{
	Use:   "worker <persona>",
	Short: "List the stages a worker owns or supports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := stages.Load()
		if err != nil {
			return err
		}
		return printJSON(cmd, reg.WorkerStages(model.Worker(args[0])))
	},
}

func init() {
	stagesCmd.AddCommand(stagesListCmd)
	stagesCmd.AddCommand(stagesShowCmd)
	stagesCmd.AddCommand(stagesWorkerCmd)
	rootCmd.AddCommand(stagesCmd)
}
