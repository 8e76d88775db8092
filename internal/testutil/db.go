// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database that lives for the test
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// SeedUsers inserts users with the given ids, deriving email and first name from the id
func SeedUsers(t testing.TB, db *gorm.DB, ids ...string) []models.User {
	t.Helper()

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u := models.User{ID: id, Email: id + "@campus.test", FirstName: id, Role: models.RoleStudent}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("failed to seed user %s: %v", id, err)
		}
		users = append(users, u)
	}
	return users
}
