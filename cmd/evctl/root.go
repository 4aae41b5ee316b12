package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"evcharge/internal/cli"
	"evcharge/internal/config"
	applog "evcharge/internal/log"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile string
	backend string
	dbPath  string
	csvPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "evctl",
		Short: "Log EV charging sessions and report monthly costs",
		Long: `evctl records EV charging sessions (date, energy, cost, location, charge
percentage) in the configured backend and prints monthly summaries and charts.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (default is $CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "data backend: memory, csv, sqlite or sheets")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database file")
	root.PersistentFlags().StringVar(&opts.csvPath, "csv", "", "CSV file for the csv backend")

	root.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newSummaryCmd(opts),
		newChartCmd(opts),
	)
	return root
}

// cliDefaults differ from the server's in the backend: each evctl invocation
// is a fresh process, so the in-memory store would drop every change.
func cliDefaults() *config.Config {
	cfg := config.Defaults()
	cfg.DataBackend = "csv"
	return cfg
}

// loadConfig applies the command line overrides on top of file and env config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFileOver(cliDefaults(), path)
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.DataBackend = o.backend
	}
	if o.dbPath != "" {
		cfg.SQLiteDBPath = o.dbPath
	}
	if o.csvPath != "" {
		cfg.CSVFilePath = o.csvPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp builds the charging service on the configured backend. Logs go to
// stderr so command output stays parseable.
func (o *rootOptions) openApp(ctx context.Context, stderr io.Writer) (*cli.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	logger := cli.SetupLogger(cfg, applog.ComponentCLI, stderr)
	if cfg.DataBackend == "memory" {
		fmt.Fprintln(stderr, "warning: memory backend selected; changes are lost when evctl exits")
	}

	app, err := cli.BuildApp(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.DataBackend, err)
	}
	return app, nil
}

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
