package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/softwarepar/backend/internal/models"
	"gorm.io/gorm"
)

func createSupportTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_support_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Ticket{},
				&models.Payment{},
				&models.Notification{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("notifications", "payments", "tickets")
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createSupportTablesMigration())
}
