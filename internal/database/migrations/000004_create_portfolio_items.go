package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/softwarepar/backend/internal/models"
	"gorm.io/gorm"
)

func createPortfolioItemsMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_portfolio_items",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.PortfolioItem{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("portfolio_items")
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createPortfolioItemsMigration())
}
