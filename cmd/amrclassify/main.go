// Command amrclassify is the standalone entry point for the
// antimicrobial susceptibility classification engine, using a cobra
// root-command layout (global persistent flags in
// init(), subcommand flags alongside each command, rootCmd.Execute()
// in main()). A transport collaborator (HTTP API, message consumer)
// is expected to embed internal/engine.Engine directly; this binary
// exists for local/offline classification, catalog authoring, and
// CI pipelines that need to validate a candidate catalog before it is
// deployed.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	catalogPath string
	logLevel    string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:     "amrclassify",
	Short:   "Antimicrobial susceptibility classification engine",
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	Long: `amrclassify classifies laboratory susceptibility measurements
(MIC, disc diffusion, screening tests) into S/I/R/RR categories against
a versioned EUCAST/CLSI/LOCAL breakpoint catalog, applying intrinsic
resistance and expert-rule overrides before falling back to breakpoint
interpretation.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Override the configured rule catalog path (file or directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override the configured log format (json|text)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesDryRunCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
