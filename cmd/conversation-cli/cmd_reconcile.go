package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain"
	"workify/services/conversation-api/internal/infrastructure/database"
	"workify/services/conversation-api/internal/infrastructure/repository/conversationrepo"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair unread counters that drifted from the message log",
	Long: `Runs one reconcile pass. Every drifted conversation is recounted under its normal
conversation lock, so the command is safe to run while the server is serving traffic.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().Int("batch", 0, "Maximum conversations to repair (default RECONCILE_BATCH_SIZE)")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("reconcile requires STORAGE_DRIVER=postgres, got %q", cfg.StorageDriver)
	}
	batch, _ := cmd.Flags().GetInt("batch")
	if batch <= 0 {
		batch = cfg.ReconcileBatchSize
	}
	log := newLogger(cfg)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	repo := conversationrepo.NewRepository(db)
	locker := conversationrepo.NewLocker(db, cfg.LockTimeout, log)
	reconciler := domain.ProvideReconciler(locker, repo, log)

	fixed, err := reconciler.Reconcile(cmd.Context(), batch)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d conversation(s)\n", fixed)
	return nil
}
