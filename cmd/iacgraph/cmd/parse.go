package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iacgraph/iacgraph/internal/classify"
	"github.com/iacgraph/iacgraph/internal/diagnostic"
	"github.com/iacgraph/iacgraph/internal/gha"
	"github.com/iacgraph/iacgraph/internal/helmfile"
	"github.com/iacgraph/iacgraph/internal/hcl"
	"github.com/iacgraph/iacgraph/pkg/log"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a single Terraform, GHA workflow, or Helmfile source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(_ *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	kind := classify.Sniff(path, content)
	log.WithField("kind", string(kind)).Debugf("classified %s", path)

	switch kind {
	case classify.KindHCL:
		return parseHCLFile(path, content)
	case classify.KindGHA:
		return parseGHAFile(path, content)
	case classify.KindHelmfile:
		return parseHelmfileFile(path, content)
	default:
		return fmt.Errorf("could not classify %s as Terraform, GHA workflow, or Helmfile", path)
	}
}

func parseHCLFile(path string, content []byte) error {
	cache := hcl.NewExpressionCache(opts.ExpressionCacheSize)
	result := hcl.ParseModule(content, path, hcl.ParserOptions{
		ErrorRecovery:     opts.ErrorRecovery,
		ParseNestedBlocks: opts.ParseNestedBlocks,
	}, cache)
	printDiagnostics(result.Errors, result.Warnings)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Block Type", "Labels", "Attributes", "Line"})
	table.SetBorder(false)
	for _, b := range result.Value {
		table.Append([]string{string(b.BlockType), fmt.Sprint(b.Labels), fmt.Sprint(len(b.Attributes)), fmt.Sprint(b.Location.LineStart)})
	}
	table.Render()
	return nil
}

func parseGHAFile(path string, content []byte) error {
	result := gha.ParseWorkflow(content, path, opts)
	printDiagnostics(result.Errors, result.Warnings)

	if result.Value == nil {
		return nil
	}
	wf := result.Value

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Job", "Needs", "Steps", "Runs On"})
	table.SetBorder(false)
	for _, jobID := range wf.JobOrder {
		job := wf.Jobs[jobID]
		table.Append([]string{jobID, fmt.Sprint(job.Needs), fmt.Sprint(len(job.Steps)), fmt.Sprint(job.RunsOn)})
	}
	table.Render()

	detected := gha.DetectToolSteps(wf, opts)
	fmt.Printf("\ndetected %d terraform step(s), %d helm step(s)\n", len(detected.Terraform), len(detected.Helm))
	return nil
}

func parseHelmfileFile(path string, content []byte) error {
	result := helmfile.Parse(content, path, opts)
	printDiagnostics(result.Errors, result.Warnings)

	if result.Value == nil {
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Release", "Namespace", "Chart", "Needs"})
	table.SetBorder(false)
	for _, r := range result.Value.Releases {
		table.Append([]string{r.Name, r.Namespace, r.Chart, fmt.Sprint(r.Needs)})
	}
	table.Render()
	return nil
}

func printDiagnostics(errors, warnings []diagnostic.Diagnostic) {
	for _, w := range warnings {
		log.Warn(w.Error())
	}
	for _, e := range errors {
		log.Error(e.Error())
	}
}
