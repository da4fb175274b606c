package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/suPer8Hu/hugg-chat/internal/chat"
	"github.com/suPer8Hu/hugg-chat/internal/config"
	"github.com/suPer8Hu/hugg-chat/internal/db"
)

// OpenDB opens the pool and migrates the chat tables when enabled.
func OpenDB(cfg config.Config) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DBDSN, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: cfg.DBConnMaxIdle,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(chat.Models()...); err != nil {
			_ = db.Close(gdb)
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return gdb, nil
}

// NewStores builds the message and session repos over one pool.
func NewStores(gdb *gorm.DB, cfg config.Config) (*chat.MessageRepo, *chat.SessionRepo) {
	codec := chat.NewCursorCodec(cfg.CursorSecret)
	return chat.NewMessageRepo(gdb, codec, cfg.StorageTimeout),
		chat.NewSessionRepo(gdb, codec, cfg.StorageTimeout)
}
