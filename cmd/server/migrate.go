package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/history"
	"github.com/DoyleJ11/player-auction-backend/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres store and history schemas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		ctx := cmd.Context()

		if cfg.Store.Driver == "postgres" {
			st, err := postgres.New(ctx, postgres.Config{DSN: cfg.Store.DSN, MaxConns: cfg.Store.MaxConns})
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("store migrated")
		} else {
			logger.Info("memory store needs no migration", zap.String("driver", cfg.Store.Driver))
		}

		if cfg.History.Enabled {
			rec, err := history.Open(cfg.History.DSN, logger)
			if err != nil {
				return err
			}
			defer rec.Close() //nolint:errcheck
			if err := rec.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("history migrated")
		}
		return nil
	},
}
