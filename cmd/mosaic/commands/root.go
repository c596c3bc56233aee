package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// buildVersion labels telemetry emitted by the host.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mosaic",
		Short: "OpenMosaic - Micro Front-End Runtime Orchestrator",
		Long: `OpenMosaic is a runtime orchestrator for micro front-ends. It fetches a
remote configuration tree, loads each module's bundle exactly once,
mounts modules into a host document, and relays events between them.

Features:
  - Remote configuration tree with nested module containers
  - CUE-validated configuration documents
  - WASM module bundles with exactly-once load semantics
  - Slot policy for the reserved user-profile region
  - Event relay between mounted modules
  - OPA admission policies with hot reload`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "host config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}
