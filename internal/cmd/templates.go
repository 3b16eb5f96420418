package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/workflow"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Browse the built-in workflow templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		category, err := cmd.Flags().GetString("category")
		if err != nil {
			return err
		}
		registry, err := workflow.BuiltinTemplates()
		if err != nil {
			return err
		}
		rendered, err := output.Templates(format, registry.List(category))
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a template, or write a fresh workflow from it",
	Example: `  visionforge templates show object-counting
  visionforge templates show object-counting --instantiate "Shelf count" > shelf.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		registry, err := workflow.BuiltinTemplates()
		if err != nil {
			return err
		}
		tmpl, err := registry.Get(args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("instantiate") {
			name, _ := cmd.Flags().GetString("instantiate")
			wf, err := tmpl.Instantiate(name)
			if err != nil {
				return err
			}
			data, err := workflow.MarshalYAML(wf)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		}

		rendered, err := output.Template(format, tmpl)
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the supported vision models",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		rendered, err := output.Models(format, ailink.SupportedModels())
		if err != nil {
			return err
		}
		printRendered(cmd, rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd, modelsCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd)

	templatesListCmd.Flags().String("category", "", "Filter by category: counting, identification, analysis, comparison")
	templatesShowCmd.Flags().String("instantiate", "", "Print a new workflow (YAML) built from the template with this name")
	addOutputFlag(templatesListCmd)
	addOutputFlag(templatesShowCmd)
	addOutputFlag(modelsCmd)
}
