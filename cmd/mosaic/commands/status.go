package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmosaic/openmosaic/pkg/config"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
	"github.com/openmosaic/openmosaic/pkg/stores"
)

func newStatusCommand() *cobra.Command {
	var (
		dbPath string
		module string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded module statuses",
		Long: `Show the module lifecycle statuses recorded by a running host.

By default the latest status per module is shown; --all lists every
recorded transition. The status database path is taken from the host
configuration unless --db overrides it.`,
		Example: `  # Latest status per module
  mosaic status --db /var/lib/mosaic/status.db

  # Full history for one module
  mosaic status --db status.db --module product-list --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				hc, err := config.LoadHostConfig(configPath, config.OSEnvironment{})
				if err != nil {
					return err
				}
				dbPath = hc.StatusDBPath
			}
			if dbPath == "" {
				return fmt.Errorf("no status database configured (set --db or statusDb)")
			}

			store, err := stores.NewStatusStore(stores.Config{Path: dbPath})
			if err != nil {
				return err
			}
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			defer store.Close()

			var statuses []orchestrator.ModuleStatus
			if all {
				statuses, err = store.ListStatuses(cmd.Context(), module)
			} else {
				statuses, err = store.LatestStatuses(cmd.Context())
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tSTATE\tDETAIL\tAT")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					s.Module, s.State, s.Detail, s.At.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "status database path")
	cmd.Flags().StringVar(&module, "module", "", "filter by module name")
	cmd.Flags().BoolVar(&all, "all", false, "show the full status history")

	return cmd
}
