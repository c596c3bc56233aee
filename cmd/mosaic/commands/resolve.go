package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmosaic/openmosaic/pkg/config"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
	"github.com/openmosaic/openmosaic/pkg/transport"
)

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [file]",
		Short: "Print the resolved module load order",
		Long: `Resolve a container configuration tree into the flat, duplicate-free
module load order the host would use.

With a file argument the tree is read locally; without one it is
fetched from the configured base URL.`,
		Example: `  # Resolve a local tree document
  mosaic resolve micro-front-ends.json

  # Resolve the remote tree
  MOSAIC_CONFIG_BASE_URL=https://config.example.com mosaic resolve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var roots []*orchestrator.ContainerConfig

			if len(args) > 0 {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				roots, err = config.NewDecoder().DecodeContainerTree(raw)
				if err != nil {
					return err
				}
			} else {
				hc, err := config.LoadHostConfig(configPath, config.OSEnvironment{})
				if err != nil {
					return err
				}
				client, err := transport.New(transport.Options{
					BaseURL: hc.ConfigBaseURL,
					Timeout: hc.HTTPTimeout,
				})
				if err != nil {
					return err
				}
				roots, err = client.FetchContainerTree(cmd.Context())
				if err != nil {
					return err
				}
			}

			names := orchestrator.Flatten(roots)

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(names)
			}

			for i, name := range names {
				fmt.Printf("%3d. %s\n", i+1, name)
			}
			return nil
		},
	}

	return cmd
}
