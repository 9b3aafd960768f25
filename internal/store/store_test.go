package store

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fathima-sithara/teamchat-service/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single shared in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func newTestStores(t *testing.T) (*ChatStore, *PresenceStore, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewChatStore(db, zap.NewNop().Sugar()), NewPresenceStore(db, 0), db
}

func createUser(t *testing.T, db *gorm.DB, email, displayName string) string {
	t.Helper()
	user := models.User{Email: email}
	require.NoError(t, db.Create(&user).Error)
	if displayName != "" {
		name := displayName
		require.NoError(t, db.Create(&models.Profile{UserID: user.ID, DisplayName: &name}).Error)
	}
	return user.ID
}
