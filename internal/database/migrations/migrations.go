package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in the order their files register them
var migrationsList []*gormigrate.Migration

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)

	if err := m.Migrate(); err != nil {
		zap.L().Error("could not migrate", zap.Error(err))
		return err
	}
	zap.L().Info("migrations ran successfully", zap.Int("count", len(migrationsList)))
	return nil
}

// RollbackLast undoes the most recently applied migration
func RollbackLast(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)
	if err := m.RollbackLast(); err != nil {
		zap.L().Error("could not roll back", zap.Error(err))
		return err
	}
	zap.L().Info("rolled back last migration")
	return nil
}

// IDs lists every known migration in apply order
func IDs() []string {
	ids := make([]string, 0, len(migrationsList))
	for _, m := range migrationsList {
		ids = append(ids, m.ID)
	}
	return ids
}
