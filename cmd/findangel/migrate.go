package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Applies the migrations compiled into the binary, or those under
MIGRATIONS_DIR when it is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup("migrate")
			if err != nil {
				return err
			}
			defer rt.Close()

			db, err := rt.openDB()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			applied, err := db.Migrate(ctx, rt.cfg.DB.MigrationsDir)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.FgGreen).Sprint("applied"), v)
			}
			return nil
		},
	}
}
