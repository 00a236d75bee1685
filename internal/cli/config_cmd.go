package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sqlgraph/internal/config"
	"github.com/aidanlsb/sqlgraph/internal/dialect"
	"github.com/aidanlsb/sqlgraph/internal/ui"
)

type configContext struct {
	cfg          *config.Config
	configPath   string
	configExists bool
}

var (
	configSetSchema      string
	configSetDSN         string
	configSetDialect     string
	configSetMetricsAddr string
	configSetUIAccent    string
	configSetUICodeTheme string

	configUnsetMetricsAddr bool
	configUnsetUIAccent    bool
	configUnsetUICodeTheme bool
)

// loadConfigContext loads the config file named by --config (or the default
// path) without applying flag overrides. A missing file yields defaults.
func loadConfigContext() (*configContext, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = config.DefaultPath()
	}

	_, statErr := os.Stat(path)
	if statErr != nil && !os.IsNotExist(statErr) {
		return nil, statErr
	}
	loaded, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return &configContext{cfg: loaded, configPath: path, configExists: statErr == nil}, nil
}

func configData(ctx *configContext) map[string]interface{} {
	c := ctx.cfg
	return map[string]interface{}{
		"config_path": ctx.configPath,
		"exists":      ctx.configExists,
		"schema":      c.Schema,
		"database":    map[string]interface{}{"dsn": c.Database.DSN},
		"dialect": map[string]interface{}{
			"name":                  c.Dialect.Name,
			"public_schema":         c.Dialect.PublicSchema,
			"inline_list_threshold": c.Dialect.InlineListThreshold,
			"bulk_membership":       c.Dialect.BulkMembership,
		},
		"materialize": map[string]interface{}{"batch_size": c.Materialize.BatchSize},
		"log":         map[string]interface{}{"level": c.Log.Level, "format": c.Log.Format},
		"metrics":     map[string]interface{}{"addr": c.Metrics.Addr},
		"ui": map[string]interface{}{
			"accent":     strings.TrimSpace(c.UI.Accent),
			"code_theme": strings.TrimSpace(c.UI.CodeTheme),
		},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx, err := loadConfigContext()
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}

	if isJSONOutput() {
		outputSuccess(configData(ctx), nil)
		return nil
	}

	c := ctx.cfg
	fmt.Printf("config: %s\n", ctx.configPath)
	if !ctx.configExists {
		fmt.Println(ui.Hint("(file does not exist; showing defaults. Run 'sqlgraph config init' to create it.)"))
	}
	fmt.Printf("schema: %s\n", c.Schema)
	fmt.Printf("database.dsn: %s\n", c.Database.DSN)
	fmt.Printf("dialect.name: %s\n", c.Dialect.Name)
	if c.Dialect.PublicSchema != "" {
		fmt.Printf("dialect.public_schema: %s\n", c.Dialect.PublicSchema)
	}
	fmt.Printf("dialect.inline_list_threshold: %d\n", c.Dialect.InlineListThreshold)
	fmt.Printf("dialect.bulk_membership: %t\n", c.Dialect.BulkMembership)
	fmt.Printf("materialize.batch_size: %d\n", c.Materialize.BatchSize)
	fmt.Printf("log.level: %s\n", c.Log.Level)
	fmt.Printf("log.format: %s\n", c.Log.Format)
	if c.Metrics.Addr != "" {
		fmt.Printf("metrics.addr: %s\n", c.Metrics.Addr)
	}
	if v := strings.TrimSpace(c.UI.Accent); v != "" {
		fmt.Printf("ui.accent: %s\n", v)
	}
	if v := strings.TrimSpace(c.UI.CodeTheme); v != "" {
		fmt.Printf("ui.code_theme: %s\n", v)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sqlgraph config.toml settings",
	Long: `Manage sqlgraph config.toml settings.

Use this to initialize, inspect, and edit the topology path, database,
dialect and display preferences.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config.toml if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetPath := strings.TrimSpace(configPath)
		if targetPath == "" {
			targetPath = config.DefaultPath()
		}
		if _, err := os.Stat(targetPath); err != nil && !os.IsNotExist(err) {
			return handleError(ErrFileReadError, err, "")
		}

		created, err := config.CreateDefault(targetPath)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"config_path": targetPath,
				"created":     created,
			}, nil)
			return nil
		}

		if created {
			fmt.Println(ui.Successf("Created config: %s", targetPath))
		} else {
			fmt.Printf("Config already exists: %s\n", targetPath)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set one or more config.toml fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := loadConfigContext()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		changed := make([]string, 0, 6)
		set := func(flag, key string, value string, dst *string) error {
			if !cmd.Flags().Changed(flag) {
				return nil
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("%s cannot be empty", flag), "")
			}
			*dst = value
			changed = append(changed, key)
			return nil
		}

		for _, f := range []struct {
			flag, key string
			value     string
			dst       *string
		}{
			{"schema-path", "schema", configSetSchema, &ctx.cfg.Schema},
			{"dsn", "database.dsn", configSetDSN, &ctx.cfg.Database.DSN},
			{"dialect-name", "dialect.name", configSetDialect, &ctx.cfg.Dialect.Name},
			{"metrics-addr", "metrics.addr", configSetMetricsAddr, &ctx.cfg.Metrics.Addr},
			{"ui-accent", "ui.accent", configSetUIAccent, &ctx.cfg.UI.Accent},
			{"ui-code-theme", "ui.code_theme", configSetUICodeTheme, &ctx.cfg.UI.CodeTheme},
		} {
			if err := set(f.flag, f.key, f.value, f.dst); err != nil {
				return err
			}
		}

		if len(changed) == 0 {
			return handleErrorMsg(ErrMissingArgument, "no fields provided; set at least one --schema-path/--dsn/--dialect-name/--metrics-addr/--ui-accent/--ui-code-theme", "")
		}
		if err := ctx.cfg.Validate(); err != nil {
			return handleError(ErrInvalidInput, err, "Supported dialects: "+strings.Join(dialect.Names(), ", "))
		}

		if err := config.SaveTo(ctx.configPath, ctx.cfg); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		ctx.configExists = true
		if isJSONOutput() {
			data := configData(ctx)
			data["changed"] = changed
			outputSuccess(data, nil)
			return nil
		}

		fmt.Printf("Updated config: %s\n", ctx.configPath)
		fmt.Printf("changed: %s\n", strings.Join(changed, ", "))
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Clear one or more optional config.toml fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := loadConfigContext()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		if !ctx.configExists {
			return handleErrorMsg(ErrFileNotFound, fmt.Sprintf("config file not found: %s", ctx.configPath), "Run 'sqlgraph config init' first")
		}

		changed := make([]string, 0, 3)
		if configUnsetMetricsAddr {
			ctx.cfg.Metrics.Addr = ""
			changed = append(changed, "metrics.addr")
		}
		if configUnsetUIAccent {
			ctx.cfg.UI.Accent = ""
			changed = append(changed, "ui.accent")
		}
		if configUnsetUICodeTheme {
			ctx.cfg.UI.CodeTheme = ""
			changed = append(changed, "ui.code_theme")
		}

		if len(changed) == 0 {
			return handleErrorMsg(ErrMissingArgument, "no fields selected; pass one or more unset flags", "")
		}

		if err := config.SaveTo(ctx.configPath, ctx.cfg); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			data := configData(ctx)
			data["changed"] = changed
			outputSuccess(data, nil)
			return nil
		}

		fmt.Printf("Updated config: %s\n", ctx.configPath)
		fmt.Printf("cleared: %s\n", strings.Join(changed, ", "))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config.toml values",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})

	configSetCmd.Flags().StringVar(&configSetSchema, "schema-path", "", "Set the topology file path")
	configSetCmd.Flags().StringVar(&configSetDSN, "dsn", "", "Set database.dsn")
	configSetCmd.Flags().StringVar(&configSetDialect, "dialect-name", "", "Set dialect.name (sqlite|postgres)")
	configSetCmd.Flags().StringVar(&configSetMetricsAddr, "metrics-addr", "", "Set metrics.addr")
	configSetCmd.Flags().StringVar(&configSetUIAccent, "ui-accent", "", "Set UI accent color (ANSI 0-255 or #RRGGBB)")
	configSetCmd.Flags().StringVar(&configSetUICodeTheme, "ui-code-theme", "", "Set markdown code theme name")

	configUnsetCmd.Flags().BoolVar(&configUnsetMetricsAddr, "metrics-addr", false, "Clear metrics.addr")
	configUnsetCmd.Flags().BoolVar(&configUnsetUIAccent, "ui-accent", false, "Clear ui.accent")
	configUnsetCmd.Flags().BoolVar(&configUnsetUICodeTheme, "ui-code-theme", false, "Clear ui.code_theme")

	rootCmd.AddCommand(configCmd)
}
