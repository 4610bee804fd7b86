// Package testutil installs an in-memory database as the global connection for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens a fresh migrated sqlite database and installs it via config.SetDB.
// Redis is disabled, so caches, sessions and locks are no-ops.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))

	prevDB := config.GetDB()
	config.SetDB(db)
	config.SetRedisDB(nil)
	t.Cleanup(func() {
		config.SetDB(prevDB)
		_ = sqlDB.Close()
	})
	return db
}

// Ctx returns a context acting as username.
func Ctx(username string) context.Context {
	return utils.SetUsernameInContext(context.Background(), username)
}

// SeedMember inserts a member row directly, bypassing manual-entry normalization.
func SeedMember(t *testing.T, db *gorm.DB, m models.Member) *models.Member {
	t.Helper()
	if m.FirstName == "" {
		m.FirstName = "Test"
	}
	if m.LastName == "" {
		m.LastName = "Member"
	}
	if m.Source == "" {
		m.Source = models.MemberSourceManual
	}
	require.NoError(t, db.Create(&m).Error)
	return &m
}
