// Command server runs the cylinder tracking API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"cylinder-backend/internal/config"
	"cylinder-backend/internal/database"
	"cylinder-backend/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "cylinder-backend"

var (
	// configFile is set by the --config flag.
	configFile string

	cfg *config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Gas cylinder tracking backend",
	Long: `Multi-tenant backend that tracks gas cylinders, their periodic
pressure tests and the parties that own or hold them.
Without a subcommand it starts the HTTP API.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (env and .env are always read)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(importPartiesCmd)
	rootCmd.AddCommand(importCylindersCmd)
}

// setup loads config and builds the logger for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err = logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	return nil
}

// openDB connects and migrates the configured database.
func openDB() (*gorm.DB, error) {
	db, err := database.Init(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return db, nil
}
