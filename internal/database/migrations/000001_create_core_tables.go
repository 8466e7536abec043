package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/softwarepar/backend/internal/models"
	"gorm.io/gorm"
)

func createCoreTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_core_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.User{},
				&models.Partner{},
				&models.Project{},
				&models.Referral{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("referrals", "projects", "partners", "users")
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createCoreTablesMigration())
}
