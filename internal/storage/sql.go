package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type entry struct {
	Key       string `gorm:"column:item_key;primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "session_kv" }

// SQLStore persists keys in a single table through gorm; it backs both the
// sqlite file store and the postgres store.
type SQLStore struct {
	db      *gorm.DB
	backend string
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, backend: db.Dialector.Name()}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("item_key = ?", key).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordStorageOperation(ctx, s.backend, "get", "miss")
			return "", false, nil
		}
		observability.RecordStorageOperation(ctx, s.backend, "get", "error")
		return "", false, err
	}
	observability.RecordStorageOperation(ctx, s.backend, "get", "success")
	return e.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	e := entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	observability.RecordStorageOperation(ctx, s.backend, "set", statusOf(err))
	return err
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("item_key = ?", key).Delete(&entry{}).Error
	observability.RecordStorageOperation(ctx, s.backend, "remove", statusOf(err))
	return err
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
