package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=postgres, got %q", cfg.StorageDriver)
	}
	log := newLogger(cfg)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.RunMigrations(cmd.Context(), db, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    1,
		MaxOpenConns:    2,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}
