// Package main implements the todo-api server and its admin commands.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"todo-api-v2/config"
)

var version = "dev"

func main() {
	log.SetPrefix("[TODO-API] ")
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// rootOptions holds the flags every subcommand shares.
type rootOptions struct {
	configPath string
	dbDriver   string
	dbSource   string
}

// load resolves the layered configuration and applies flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("db-driver") {
		cfg.DBDriver = o.dbDriver
	}
	if cmd.Flags().Changed("db-source") {
		cfg.DBSource = o.dbSource
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "todo-api",
		Short:        "Multi-tenant to-do list REST API",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&opts.dbDriver, "db-driver", "", fmt.Sprintf("database driver (%s or %s)", config.DriverPostgres, config.DriverSQLite))
	root.PersistentFlags().StringVar(&opts.dbSource, "db-source", "", "database connection string (overrides DB_SOURCE)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newCreateSuperuserCmd(opts),
	)

	return root
}
