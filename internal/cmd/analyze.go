package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visionforge/visionforge/internal/config"
	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/workflow"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Send one card and its images to the model",
	Long: `Build the card's prompt and send it with the given images. Images are
added to the library under their file name without extension, or under an
explicit id with --image id=path. A card that names no image ids uses the
images in flag order.`,
	Example: "  visionforge analyze -f card.yaml --image target=photo.jpg\n  visionforge analyze -f card.yaml --image a.png --image b.png --model openai/gpt-4o",
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("file", "f", "", "Card file (YAML or JSON, - for stdin)")
	analyzeCmd.Flags().Int("card", 1, "Card number to analyze when the file holds a workflow")
	analyzeCmd.Flags().Bool("structured", false, "Ask the model for JSON output")
	addImageFlags(analyzeCmd)
	addModelFlag(analyzeCmd)
	addOutputFlag(analyzeCmd)
}

func addImageFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("image", "i", nil, "Image file, optionally as id=path (repeatable)")
}

func addModelFlag(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "Model override (defaults to ailink.default_model)")
}

// loadImages prepares the --image files into a library and returns their
// ids in flag order.
func loadImages(cmd *cobra.Command, cfg *config.Config) (*imageset.Library, []string, error) {
	specs, err := cmd.Flags().GetStringArray("image")
	if err != nil {
		return nil, nil, err
	}
	library := imageset.NewLibrary(cfg.Images)
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		id, path := "", spec
		if before, after, ok := strings.Cut(spec, "="); ok && before != "" && after != "" {
			id, path = before, after
		}
		img, err := library.AddFile(id, path)
		if err != nil {
			return nil, nil, fmt.Errorf("image %s: %w", spec, err)
		}
		ids = append(ids, img.ID)
	}
	return library, ids, nil
}

func modelFlag(cmd *cobra.Command, cfg *config.Config) string {
	if model, _ := cmd.Flags().GetString("model"); strings.TrimSpace(model) != "" {
		return model
	}
	return cfg.AILink.DefaultModel
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cardNum, err := cmd.Flags().GetInt("card")
	if err != nil {
		return err
	}
	structured, err := cmd.Flags().GetBool("structured")
	if err != nil {
		return err
	}
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	wf, err := loadWorkflowFlag(cmd)
	if err != nil {
		return err
	}
	if cardNum < 1 || cardNum > len(wf.Cards) {
		return fmt.Errorf("--card %d out of range (file has %d card(s))", cardNum, len(wf.Cards))
	}
	card := wf.Cards[cardNum-1]

	library, ids, err := loadImages(cmd, cfg)
	if err != nil {
		return err
	}
	if len(card.ImageIDs()) == 0 {
		card.Images = ids
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	runner := &workflow.Runner{
		Analyzer:         analyzer,
		Images:           library,
		Model:            modelFlag(cmd, cfg),
		StopOnError:      true,
		StructuredOutput: structured || cfg.Workflow.StructuredOutput,
		DrawMarkups:      cfg.Workflow.DrawMarkups,
	}
	single := &workflow.Workflow{ID: wf.ID, Name: wf.Name, Cards: []workflow.Card{card}}
	run, err := runner.Run(cmd.Context(), single)
	if run == nil || len(run.Results) == 0 {
		return err
	}

	res := run.Results[0]
	if !res.OK {
		return err
	}
	if format != output.FormatJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", res.Response.Text)
	}
	rendered, rerr := output.Processed(format, res.Response)
	if rerr != nil {
		return rerr
	}
	printRendered(cmd, rendered)
	if format != output.FormatJSON && res.Model != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nmodel: %s (%s)\n", res.Model, res.Provider)
	}
	return nil
}
