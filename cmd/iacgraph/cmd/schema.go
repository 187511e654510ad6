package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iacgraph/iacgraph/pkg/options"
)

var schemaOutputFile string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for the options file",
	Long: `Generate a JSON Schema file describing iacgraph's options.

Examples:
  # Output schema to stdout
  iacgraph schema

  # Write schema to file
  iacgraph schema -f iacgraph.schema.json`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaOutputFile, "output-file", "f", "", "output file (default: stdout)")
}

func runSchema(_ *cobra.Command, _ []string) error {
	schema, err := options.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to render schema: %w", err)
	}

	if schemaOutputFile != "" {
		if err := os.WriteFile(schemaOutputFile, []byte(schema), 0o600); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "schema written to %s\n", schemaOutputFile)
		return nil
	}

	fmt.Println(schema)
	return nil
}
