// Package cmd implements the iacgraph command-line demo over the parsing
// and cross-reference core.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iacgraph/iacgraph/pkg/log"
	"github.com/iacgraph/iacgraph/pkg/options"
)

var (
	optsFile string
	logLevel string

	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	opts options.Options
)

var rootCmd = &cobra.Command{
	Use:   "iacgraph",
	Short: "Parse Terraform, GitHub Actions, and Helmfile sources into a dependency graph",
	Long: `iacgraph parses an Infrastructure-as-Code source tree spanning Terraform
HCL, GitHub Actions workflow YAML, and Helmfile release manifests, then
cross-references Terraform outputs with Helm values flowing through CI
orchestration.

Commands:
  - parse:  parse a single file and print its typed entities
  - xref:   run the cross-reference engine over a workflow
  - schema: print the JSON Schema for the options file`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		log.Init()

		if logLevel != "" {
			if err := log.SetLevelFromString(logLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
		}

		if cmd.Name() == "schema" || cmd.Name() == "version" {
			return nil
		}

		if optsFile != "" {
			loaded, err := options.Load(optsFile)
			if err != nil {
				return fmt.Errorf("failed to load options: %w", err)
			}
			opts = loaded
		} else {
			opts = options.Default()
		}
		return opts.Validate()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets version information printed by the version command.
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&optsFile, "options", "o", "", "options YAML file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}
