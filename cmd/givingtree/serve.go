package main

import (
	"github.com/lgndcraft2/giving-tree/internal/migration"
	"github.com/lgndcraft2/giving-tree/internal/scheduler"
	"github.com/lgndcraft2/giving-tree/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ledger replay loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infrastructure(),
				migration.Module,
				server.Module,
				scheduler.Module,
				fx.Invoke(scheduler.RunInBackground),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
