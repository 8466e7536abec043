package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/softwarepar/backend/internal/config"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/database/migrations"
	"github.com/softwarepar/backend/internal/logging"
	"github.com/softwarepar/backend/internal/services/partner"
	"github.com/softwarepar/backend/internal/services/user"
	"github.com/softwarepar/backend/internal/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the SoftwarePar database schema",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(db *gorm.DB, _ *config.Config, _ *zap.Logger) error {
					return migrations.RunMigrations(db)
				})
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Undo the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(db *gorm.DB, _ *config.Config, _ *zap.Logger) error {
					return migrations.RollbackLast(db)
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print known migration ids in apply order",
			Run: func(cmd *cobra.Command, args []string) {
				for _, id := range migrations.IDs() {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Apply migrations and create the demo accounts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(func(db *gorm.DB, cfg *config.Config, logger *zap.Logger) error {
					if err := migrations.RunMigrations(db); err != nil {
						return err
					}
					users := user.NewUserService(db, user.Dependencies{
						Hasher:   utils.NewBcryptHasher(bcrypt.DefaultCost),
						Partners: partner.NewPartnerService(db, logger),
					}, logger)
					return users.Seed(cmd.Context(), cfg.Seed)
				})
			},
		},
	)
	return cmd
}

func withDB(fn func(db *gorm.DB, cfg *config.Config, logger *zap.Logger) error) error {
	cfg := config.LoadConfig()
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.Database, logging.GormLogLevel(cfg.Environment, cfg.Database.LogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	return fn(db, cfg, logger)
}
