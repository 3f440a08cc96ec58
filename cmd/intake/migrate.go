package main

import (
	"github.com/spf13/cobra"

	"submission-intake/internal/db"
)

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := db.OpenDB(a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			a.logger.Info("running migrations")
			if err := db.RunMigrations(conn); err != nil {
				return err
			}
			version, dirty, err := db.SchemaVersion(conn)
			if err != nil {
				return err
			}
			a.logger.WithField("version", version).WithField("dirty", dirty).Info("migrations complete")
			return nil
		},
	}
}
