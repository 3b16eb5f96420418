package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workflow of prompt cards in order",
	Long: `Run every card of a workflow in order against the configured model. Card
image ids are resolved from --image files. Failed cards are recorded and later
cards still run unless --stop-on-error is set. Runs are saved to the history
store when it is enabled.`,
	Example: `  visionforge run -f workflow.yaml --image shelf=shelf.jpg
  visionforge run -f workflow.yaml --image a.png --export md --out report.md`,
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("file", "f", "", "Workflow file (YAML or JSON, - for stdin)")
	runCmd.Flags().Bool("stop-on-error", false, "Stop at the first failing card")
	runCmd.Flags().Bool("structured", false, "Ask the model for JSON output on every card")
	runCmd.Flags().String("context", "", "Default context mode: none, full, summary, structured")
	runCmd.Flags().String("export", "", "Export workflow and results: json, markdown (md), csv")
	runCmd.Flags().String("out", "", "Export destination (defaults to stdout)")
	runCmd.Flags().Bool("no-history", false, "Do not save the run to the history store")
	addImageFlags(runCmd)
	addModelFlag(runCmd)
	addOutputFlag(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	stopOnError, _ := flags.GetBool("stop-on-error")
	structured, _ := flags.GetBool("structured")
	contextMode, _ := flags.GetString("context")
	exportFlag, _ := flags.GetString("export")
	outPath, _ := flags.GetString("out")
	noHistory, _ := flags.GetBool("no-history")

	var exportFormat workflow.ExportFormat
	if exportFlag != "" {
		if exportFormat, err = workflow.ParseExportFormat(exportFlag); err != nil {
			return err
		}
	}

	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	defaultContext, err := cfg.Workflow.DefaultContextMode()
	if err != nil {
		return err
	}
	if contextMode != "" {
		if defaultContext, err = workflow.ParseContextMode(contextMode); err != nil {
			return err
		}
	}

	wf, err := loadWorkflowFlag(cmd)
	if err != nil {
		return err
	}
	library, _, err := loadImages(cmd, cfg)
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	runner := &workflow.Runner{
		Analyzer:         analyzer,
		Images:           library,
		Logger:           observability.CLILogger,
		Model:            modelFlag(cmd, cfg),
		StopOnError:      stopOnError || cfg.Workflow.StopOnError,
		StructuredOutput: structured || cfg.Workflow.StructuredOutput,
		DefaultContext:   defaultContext,
		DrawMarkups:      cfg.Workflow.DrawMarkups,
	}
	if !noHistory {
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			observability.CLILogger.Warn("Run history disabled", zap.Error(err))
		} else if db != nil {
			defer closeStore(db)
			runner.Recorder = db
		}
	}

	run, runErr := runner.Run(cmd.Context(), wf)
	if run == nil {
		return runErr
	}

	rendered, err := output.Run(format, run)
	if err != nil {
		return err
	}
	printRendered(cmd, rendered)

	if exportFormat != "" {
		if err := exportRun(cmd, exportFormat, outPath, wf, run); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if failed := run.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d card(s) failed", failed, len(run.Results))
	}
	return nil
}

func exportRun(cmd *cobra.Command, format workflow.ExportFormat, path string, wf *workflow.Workflow, run *workflow.RunResult) error {
	var w io.Writer = cmd.OutOrStdout()
	if path != "" && path != "-" {
		f, err := os.Create(path) // #nosec G304 -- export path is user-provided
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := workflow.Export(w, format, wf, run, workflow.ExportOptions{IncludeResponses: true}); err != nil {
		return fmt.Errorf("export run: %w", err)
	}
	if path != "" && path != "-" {
		observability.CLILogger.Info(fmt.Sprintf("Exported %s to %s", format, path))
	}
	return nil
}
