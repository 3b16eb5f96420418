package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/response"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a raw model response",
	Long: `Extract structured data, code blocks, confidence, a summary and key findings
from a model response. --format checks the response against an expected format.`,
	Example: "  visionforge process -f response.txt --format json",
	RunE:    runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringP("file", "f", "", "Response text file (- for stdin)")
	processCmd.Flags().String("format", "", "Expected response format: json, text, structured")
	processCmd.Flags().Bool("html", false, "Print the response with code blocks rendered as HTML")
	addOutputFlag(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	expected, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	html, err := cmd.Flags().GetBool("html")
	if err != nil {
		return err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	processed := response.Process(string(data))
	if html {
		fmt.Fprintln(cmd.OutOrStdout(), response.FormatCodeBlocksHTML(processed.Text))
		return nil
	}

	rendered, err := output.Processed(format, processed)
	if err != nil {
		return err
	}
	printRendered(cmd, rendered)

	if expected == "" {
		return nil
	}
	want := response.Format(expected)
	switch want {
	case response.FormatJSON, response.FormatText, response.FormatStructured:
	default:
		return fmt.Errorf("unsupported --format %q (use json, text or structured)", expected)
	}
	if !response.ValidateFormat(processed.Text, want) {
		return fmt.Errorf("response is not valid %s", expected)
	}
	return nil
}
