package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visionforge/visionforge/internal/metrics"
	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/technique"
	"github.com/visionforge/visionforge/internal/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a card or workflow file",
	Long: `Validate every card's technique configuration and print all violations.
Exits non-zero when any card is invalid.`,
	Example: "  visionforge validate -f card.yaml\n  visionforge validate -f workflow.yaml -o json",
	RunE:    runValidate,
}

var buildCmd = &cobra.Command{
	Use:     "build",
	Short:   "Build the prompt for each card in a file",
	Example: "  visionforge build -f card.yaml --structured",
	RunE:    runBuild,
}

var comboCmd = &cobra.Command{
	Use:   "combo",
	Short: "Check and combine lists of techniques",
}

func init() {
	rootCmd.AddCommand(validateCmd, buildCmd, comboCmd)

	validateCmd.Flags().StringP("file", "f", "", "Card or workflow file (YAML or JSON, - for stdin)")
	addOutputFlag(validateCmd)

	buildCmd.Flags().StringP("file", "f", "", "Card or workflow file (YAML or JSON, - for stdin)")
	buildCmd.Flags().Bool("structured", false, "Append a JSON output request to each prompt")
	buildCmd.Flags().String("structure", "", "Custom JSON skeleton for --structured")

	for _, sub := range []*cobra.Command{
		{Use: "validate", Short: "Check that techniques can be combined", RunE: runCombo},
		{Use: "resolve", Short: "Drop repeated techniques from an incompatible list", RunE: runCombo},
		{Use: "order", Short: "Sort techniques into application order", RunE: runCombo},
		{Use: "prompt", Short: "Build the combined prompt", RunE: runCombo},
	} {
		sub.Flags().StringP("file", "f", "", "Techniques file: a list, or a mapping with a techniques key")
		addOutputFlag(sub)
		comboCmd.AddCommand(sub)
	}
}

func loadWorkflowFlag(cmd *cobra.Command) (*workflow.Workflow, error) {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return workflow.Load(path, data)
}

type cardValidation struct {
	Card      string                     `json:"card"`
	Technique technique.Kind             `json:"technique"`
	Result    technique.ValidationResult `json:"result"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	wf, err := loadWorkflowFlag(cmd)
	if err != nil {
		return err
	}

	results := make([]cardValidation, 0, len(wf.Cards))
	invalid := 0
	for i, card := range wf.Cards {
		res := technique.Validate(card.Technique.Config)
		metrics.RecordValidation(string(card.Technique.Kind()), res.Valid)
		if !res.Valid {
			invalid++
		}
		results = append(results, cardValidation{Card: card.Label(i), Technique: card.Technique.Kind(), Result: res})
	}

	if format == output.FormatJSON {
		rendered, err := output.JSON(results)
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
	} else {
		for _, v := range results {
			rendered, err := output.Validation(format, v.Technique, v.Result)
			if err != nil {
				return err
			}
			if len(results) > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", v.Card)
			}
			printRendered(cmd, rendered)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d card(s) failed validation", invalid, len(results))
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	structured, err := cmd.Flags().GetBool("structured")
	if err != nil {
		return err
	}
	structure, err := cmd.Flags().GetString("structure")
	if err != nil {
		return err
	}
	wf, err := loadWorkflowFlag(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, card := range wf.Cards {
		prompt, err := technique.Build(card.Technique.Config)
		metrics.RecordPromptBuild(string(card.Technique.Kind()), err == nil)
		if err != nil {
			return fmt.Errorf("%s: %w", card.Label(i), err)
		}
		if structured {
			prompt = technique.AddStructuredOutputRequest(prompt, structure)
		}
		if len(wf.Cards) > 1 {
			fmt.Fprintf(out, "--- %s ---\n", card.Label(i))
		}
		fmt.Fprintln(out, prompt)
	}
	return nil
}

func runCombo(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	techniques, err := workflow.LoadTechniques(path, data)
	if err != nil {
		return err
	}

	switch cmd.Name() {
	case "validate":
		res := technique.ValidateCombination(techniques)
		metrics.RecordCombination(len(techniques), res.Compatible)
		rendered, err := output.Combination(format, technique.KindsOf(techniques), res)
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		if !res.Compatible {
			return fmt.Errorf("incompatible combination: %s", strings.Join(res.Conflicts, "; "))
		}
		return nil
	case "resolve", "order":
		list := technique.ResolveConflicts(techniques)
		if cmd.Name() == "order" {
			list = technique.OrderForApplication(techniques)
		}
		if format == output.FormatJSON {
			rendered, err := output.JSON(list)
			if err != nil {
				return err
			}
			printRendered(cmd, rendered)
			return nil
		}
		res := technique.ValidateCombination(list)
		rendered, err := output.Combination(format, technique.KindsOf(list), res)
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		return nil
	default:
		prompt, err := technique.BuildCombinedPrompt(techniques)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompt)
		return nil
	}
}
