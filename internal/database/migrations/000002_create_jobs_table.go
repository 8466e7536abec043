package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/softwarepar/backend/internal/queue"
	"gorm.io/gorm"
)

func createJobsTableMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_jobs_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&queue.Job{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("jobs")
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createJobsTableMigration())
}
