package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/config"
	"github.com/DoyleJ11/player-auction-backend/internal/logging"
	"github.com/DoyleJ11/player-auction-backend/internal/seatauth"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Live player auction server",
	Long: `server runs the live auction backend: operators drive the auction over
HTTP, team seats vote over HTTP or websocket, and every committed change is
pushed to viewers.`,
	SilenceUsage: true,
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Print the bcrypt hash to use as auth.admin_key_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := seatauth.HashAdminKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (optional)")
	rootCmd.AddCommand(serveCmd, migrateCmd, hashKeyCmd)
}

// setup loads and validates the config and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
