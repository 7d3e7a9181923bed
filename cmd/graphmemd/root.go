package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mirofish/graphmemd/internal/config"
	"github.com/mirofish/graphmemd/internal/logging"
)

var (
	// Version information, set by build flags.
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *slog.Logger
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "graphmemd",
	Short: "graphmemd maintains a temporal knowledge graph from streamed agent activity",
	Long: `graphmemd ingests simulation activity streams, extracts entities and
relations with an LLM, resolves them against an existing graph, and keeps
a bi-temporal Neo4j memory up to date — invalidating contradicted facts
instead of overwriting them.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg := logging.DebugConfig()
		if !verbose {
			logCfg = logging.ProductionConfig(filepath.Join(".graphmemd", "logs", "graphmemd.log"))
		}
		fileLogger, err := logging.NewLogger(logCfg)
		if err != nil {
			return err
		}
		logger = fileLogger.Slog()
		slog.SetDefault(logger)

		loaded, loadErr := config.Load(cfgFile)
		if loadErr != nil {
			logger.Warn("failed to load config, using defaults", "error", loadErr)
			loaded = config.Default()
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .graphmemd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`graphmemd {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
