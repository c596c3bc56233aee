package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmosaic/openmosaic/pkg/config"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

func newValidateCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate configuration documents",
		Long: `Validate configuration documents against the built-in CUE schemas.

A micro-front-ends.json document is validated as a container tree;
any other file is validated as a module detail configuration. The
--kind flag overrides the detection.`,
		Example: `  # Validate a container tree document
  mosaic validate micro-front-ends.json

  # Validate a module detail configuration
  mosaic validate modules/product-list.json

  # Force the document kind
  mosaic validate --kind tree ./staging-tree.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decoder := config.NewDecoder()

			var failed int
			for _, path := range args {
				if err := validateFile(decoder, path, kind); err != nil {
					log.Error().Err(err).Str("file", path).Msg("validation failed")
					failed++
					continue
				}
				fmt.Printf("%s: ok\n", path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d document(s) failed validation", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "document kind: tree or module (default: detect from filename)")

	return cmd
}

func validateFile(decoder *config.Decoder, path, kind string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if kind == "" {
		if filepath.Base(path) == "micro-front-ends.json" {
			kind = "tree"
		} else {
			kind = "module"
		}
	}

	switch kind {
	case "tree":
		roots, err := decoder.DecodeContainerTree(raw)
		if err != nil {
			return err
		}
		names := orchestrator.Flatten(roots)
		log.Info().
			Str("file", path).
			Int("modules", len(names)).
			Str("order", strings.Join(names, ", ")).
			Msg("container tree is valid")
		return nil
	case "module":
		detail, err := decoder.DecodeModuleConfig(raw)
		if err != nil {
			return err
		}
		log.Info().
			Str("file", path).
			Str("module", detail.Name).
			Str("placement", string(detail.Placement)).
			Msg("module configuration is valid")
		return nil
	default:
		return fmt.Errorf("unknown document kind: %s (want tree or module)", kind)
	}
}
