package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ministerio/escalas/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

var errNoDatabase = errors.New("migrations need the postgres engine")

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command against the embedded migrations",
		Long: `Run a goose command against the embedded migrations.

Commands:
  up, up-by-one, up-to VERSION, down, down-to VERSION,
  redo, reset, status, version, create NAME [go|sql], fix`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
