package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/store"
	"github.com/visionforge/visionforge/internal/workflow"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved workflow runs",
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		db, err := historyStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore(db)

		runs, err := db.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		rendered, err := output.Runs(format, runs)
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		return nil
	},
}

var historyResultsCmd = &cobra.Command{
	Use:   "results <run-id>",
	Short: "Show the card results of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		db, err := historyStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore(db)

		record, err := db.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		results, err := db.ListResults(cmd.Context(), record.ID)
		if err != nil {
			return err
		}

		run := &workflow.RunResult{
			RunID:        record.ID,
			WorkflowID:   record.WorkflowID,
			WorkflowName: record.WorkflowName,
			Status:       record.Status,
			Results:      results,
			StartedAt:    record.StartedAt,
		}
		if record.FinishedAt != nil {
			run.FinishedAt = *record.FinishedAt
		}
		rendered, err := output.Run(format, run)
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		return nil
	},
}

func historyStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, err
	}
	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("run history store is disabled (store.enabled=false)")
	}
	return db, nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyRunsCmd, historyResultsCmd)

	historyRunsCmd.Flags().Int("limit", 20, "Maximum runs to list")
	addOutputFlag(historyRunsCmd)
	addOutputFlag(historyResultsCmd)
}
