package store

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fathima-sithara/teamchat-service/internal/models"
)

// Open connects to postgres. TranslateError is required so unique-index
// violations surface as gorm.ErrDuplicatedKey (direct-chat creation relies
// on it).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Chat{},
		&models.ChatMember{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
		&models.UserPresence{},
		&models.ReactionCatalogItem{},
	)
}

// SeedReactionCatalog fills the static emoji lookup table on first boot.
func SeedReactionCatalog(db *gorm.DB) error {
	var n int64
	if err := db.Model(&models.ReactionCatalogItem{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	items := []models.ReactionCatalogItem{
		{Emoji: "👍", Name: "Daumen hoch", Category: "reactions", SortOrder: 1},
		{Emoji: "❤️", Name: "Herz", Category: "reactions", SortOrder: 2},
		{Emoji: "😂", Name: "Lachen", Category: "reactions", SortOrder: 3},
		{Emoji: "😮", Name: "Überrascht", Category: "reactions", SortOrder: 4},
		{Emoji: "😢", Name: "Traurig", Category: "reactions", SortOrder: 5},
		{Emoji: "🎯", Name: "Ziel", Category: "sales", SortOrder: 6},
		{Emoji: "🚀", Name: "Rakete", Category: "sales", SortOrder: 7},
		{Emoji: "💰", Name: "Geld", Category: "sales", SortOrder: 8},
		{Emoji: "✅", Name: "Erledigt", Category: "work", SortOrder: 9},
		{Emoji: "👀", Name: "Gesehen", Category: "work", SortOrder: 10},
	}
	return db.Create(&items).Error
}

// ChatStore owns chats, memberships, messages, reactions and read state.
type ChatStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewChatStore(db *gorm.DB, log *zap.SugaredLogger) *ChatStore {
	return &ChatStore{db: db, log: log}
}

// PresenceStore tracks per-user online status.
type PresenceStore struct {
	db         *gorm.DB
	staleAfter time.Duration
}

func NewPresenceStore(db *gorm.DB, staleAfter time.Duration) *PresenceStore {
	if staleAfter <= 0 {
		staleAfter = StaleAfter
	}
	return &PresenceStore{db: db, staleAfter: staleAfter}
}
