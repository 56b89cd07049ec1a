package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/platinummonkey/somcheck/pkg/config"
	"github.com/platinummonkey/somcheck/pkg/observability"
)

// NewRootCommand creates the root command
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "somcheck",
		Short:         "somcheck - checks building models against a schema",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("schema", "", "schema file (SOMCHECK_SCHEMA)")
	flags.String("db", "", "sqlite issue database, a temporary file when empty (SOMCHECK_DB_PATH)")
	flags.String("project", "", "project stored with every issue (SOMCHECK_PROJECT)")
	flags.String("log-level", "", "debug, info, warn or error (SOMCHECK_LOG_LEVEL)")

	// Add subcommands
	root.AddCommand(
		newCheckCommand(),
		newServeCommand(),
		newWatchCommand(),
		newScheduleCommand(),
		newIssuesCommand(),
		newSchemaCommand(),
		newCompareCommand(),
	)

	return root
}

// loadConfig reads the environment and applies every flag the user set on
// the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	setString(flags, "schema", &cfg.Check.SchemaPath)
	setString(flags, "db", &cfg.Storage.Path)
	setString(flags, "project", &cfg.Check.Project)
	setString(flags, "export", &cfg.Export.Path)
	if changed(flags, "log-level") {
		v, _ := flags.GetString("log-level")
		level, err := observability.ParseLogLevel(v)
		if err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		cfg.Observability.LogLevel = level
	}
	if changed(flags, "exclude") {
		cfg.Check.Excluded, _ = flags.GetStringSlice("exclude")
	}
	if changed(flags, "max-imports") {
		cfg.Check.MaxImports, _ = flags.GetInt("max-imports")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func setString(flags *pflag.FlagSet, name string, dst *string) {
	if changed(flags, name) {
		*dst, _ = flags.GetString(name)
	}
}

// newLogger writes JSON logs to the command's stderr so stdout stays
// reserved for results.
func newLogger(cmd *cobra.Command, cfg *config.Config) *observability.Logger {
	return observability.NewLogger(cfg.Observability.LogLevel, cmd.ErrOrStderr()).
		WithField("command", cmd.Name())
}
