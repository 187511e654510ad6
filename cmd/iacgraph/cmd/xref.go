package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iacgraph/iacgraph/internal/gha"
	"github.com/iacgraph/iacgraph/internal/xref"
)

var xrefCmd = &cobra.Command{
	Use:   "xref [workflow-file]",
	Short: "Cross-reference Terraform outputs with Helm values in a GHA workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runXref,
}

func init() {
	rootCmd.AddCommand(xrefCmd)
}

func runXref(_ *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	result := gha.ParseWorkflow(content, path, opts)
	printDiagnostics(result.Errors, result.Warnings)
	if result.Value == nil {
		return fmt.Errorf("workflow did not parse")
	}

	detected := gha.DetectToolSteps(result.Value, opts)
	flows := xref.NewEngine(opts).Run(result.Value, detected)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pattern", "Source Job", "Target Job", "Output", "Confidence", "Level"})
	table.SetBorder(false)
	for _, f := range flows {
		table.Append([]string{
			string(f.Pattern), f.Source.JobID, f.Target.JobID, f.Source.OutputName,
			fmt.Sprint(f.Confidence), string(f.ConfidenceLevel),
		})
	}
	table.Render()
	return nil
}
