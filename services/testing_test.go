package services

import (
	"testing"

	"nexus-card-service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database capped at one connection
// so every statement from concurrent goroutines serializes on the pool
// (and so the :memory: database is actually shared).
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrapping test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Spawn{}, &models.MmrRating{}, &models.Match{}); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}
