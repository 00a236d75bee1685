// Package cli implements the command-line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/sqlgraph/internal/config"
	"github.com/aidanlsb/sqlgraph/internal/logging"
	"github.com/aidanlsb/sqlgraph/internal/ui"
)

var (
	// Global flags
	configPath      string
	schemaFlag      string
	dbFlag          string
	dialectFlag     string
	logLevelFlag    string
	metricsAddrFlag string

	// Resolved values
	resolvedConfigPath string
	cfg                *config.Config
	logger             *logrus.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sqlgraph",
	Short: "sqlgraph - graph traversals compiled to SQL",
	Long: `sqlgraph compiles graph traversal plans into SQL over a relational
graph layout (one V_ table per vertex label, one E_ table per edge label)
and materializes the results.

Plans are YAML files, or markdown notebooks with ` + "```sqlgraph" + ` blocks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "completion", "help", "version", "config":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		loaded, err := loadGlobalConfig()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Run 'sqlgraph config show' to inspect the effective configuration")
		}
		cfg = loaded

		ui.ConfigureTheme(cfg.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)

		logger, err = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&schemaFlag, "schema", "", "Path to the topology file (overrides schema in config)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Database DSN: SQLite path or PostgreSQL URL (overrides database.dsn)")
	rootCmd.PersistentFlags().StringVar(&dialectFlag, "dialect", "", "SQL dialect: sqlite or postgres (overrides dialect.name)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Write a JSON envelope to stdout (for scripts)")
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	return cfg
}

// getLogger returns the process logger, falling back to the logrus default
// for commands that skip config loading.
func getLogger() *logrus.Logger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// loadGlobalConfig resolves the config path, loads it over the defaults and
// applies flag overrides.
func loadGlobalConfig() (*config.Config, error) {
	resolvedConfigPath = configPath
	if strings.TrimSpace(resolvedConfigPath) == "" {
		resolvedConfigPath = config.DefaultPath()
	}

	loaded, err := config.LoadOrDefault(resolvedConfigPath)
	if err != nil {
		return nil, err
	}

	if schemaFlag != "" {
		loaded.Schema = schemaFlag
	}
	if dbFlag != "" {
		loaded.Database.DSN = dbFlag
	}
	if dialectFlag != "" {
		loaded.Dialect.Name = dialectFlag
	}
	if logLevelFlag != "" {
		loaded.Log.Level = logLevelFlag
	}
	if metricsAddrFlag != "" {
		loaded.Metrics.Addr = metricsAddrFlag
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return loaded, nil
}
