// Package store is the durable message table backed by SQLite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("message not found")

// messageRecord is the row layout. RowID uses AUTOINCREMENT so sequence
// numbers are never reused, even after a room is cleared.
type messageRecord struct {
	RowID      int64     `gorm:"column:row_id;primaryKey;autoIncrement"`
	MessageID  string    `gorm:"column:id;uniqueIndex;not null"`
	RoomID     string    `gorm:"column:room_id;index;not null"`
	SenderID   string    `gorm:"column:sender_id;not null"`
	Name       string    `gorm:"column:name;not null"`
	Text       string    `gorm:"column:text;not null"`
	SentAt     string    `gorm:"column:sent_at;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
	Kind       string    `gorm:"column:message_type"`
	FileName   *string   `gorm:"column:file_name"`
	FileType   *string   `gorm:"column:file_type"`
	FilePath   *string   `gorm:"column:file_path"`
}

func (messageRecord) TableName() string { return "messages" }

// Store implements core.MessageStore.
type Store struct {
	db *gorm.DB
}

var _ core.MessageStore = (*Store)(nil)

// Open opens (or creates) the SQLite file at path.
func Open(path string) (*Store, error) {
	l := log.With().Str("module", "store").Logger()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(&l, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open message db: %w", err)
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the schema. All access goes
// through a single connection, which serializes row id assignment.
func New(db *gorm.DB) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate messages: %w", err)
	}
	log.Info().Str("module", "store").Msg("message store ready")
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Append(ctx context.Context, m *domain.Message) (int64, bool, error) {
	rec := toRecord(m)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rec)
	if res.Error != nil {
		return 0, false, fmt.Errorf("failed to insert message: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		m.RowID = rec.RowID
		return rec.RowID, false, nil
	}

	var existing messageRecord
	if err := s.db.WithContext(ctx).Select("row_id").First(&existing, "id = ?", m.ID).Error; err != nil {
		return 0, false, fmt.Errorf("failed to find duplicate message: %w", err)
	}
	m.RowID = existing.RowID
	log.Debug().Str("module", "store").Str("id", m.ID).Int64("row", existing.RowID).Msg("duplicate message ignored")
	return existing.RowID, true, nil
}

func (s *Store) RangeBefore(ctx context.Context, room domain.RoomID, before int64, limit int) (core.Page, error) {
	if limit <= 0 {
		return core.Page{Items: []domain.Message{}}, nil
	}
	q := s.db.WithContext(ctx).Where("room_id = ?", string(room))
	if before > 0 {
		q = q.Where("row_id < ?", before)
	}
	var recs []messageRecord
	if err := q.Order("row_id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return core.Page{}, fmt.Errorf("failed to list messages: %w", err)
	}

	items := make([]domain.Message, len(recs))
	for i, rec := range recs {
		items[len(recs)-1-i] = fromRecord(rec)
	}
	page := core.Page{Items: items}
	if len(items) == limit {
		oldest := items[0].RowID
		page.NextBefore = &oldest
	}
	return page, nil
}

func (s *Store) ClearRoom(ctx context.Context, room domain.RoomID) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&messageRecord{}).
			Where("room_id = ? AND file_path IS NOT NULL AND file_path <> ''", string(room)).
			Pluck("file_path", &paths).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", string(room)).Delete(&messageRecord{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear room: %w", err)
	}
	return paths, nil
}

func (s *Store) RoomOf(ctx context.Context, rowID int64) (domain.RoomID, error) {
	var rec messageRecord
	err := s.db.WithContext(ctx).Select("room_id").First(&rec, "row_id = ?", rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find message row: %w", err)
	}
	return domain.RoomID(rec.RoomID), nil
}

func toRecord(m *domain.Message) messageRecord {
	rec := messageRecord{
		MessageID:  m.ID,
		RoomID:     string(m.RoomID),
		SenderID:   string(m.SenderID),
		Name:       m.SenderName,
		Text:       m.Text,
		SentAt:     m.SentAt,
		ReceivedAt: m.ReceivedAt,
		Kind:       string(m.Kind),
	}
	if m.File != nil {
		rec.FileName = optional(m.File.Name)
		rec.FileType = optional(m.File.Type)
		rec.FilePath = optional(m.File.Path)
	}
	return rec
}

func fromRecord(rec messageRecord) domain.Message {
	m := domain.Message{
		RowID:      rec.RowID,
		ID:         rec.MessageID,
		RoomID:     domain.RoomID(rec.RoomID),
		SenderID:   domain.UserID(rec.SenderID),
		SenderName: rec.Name,
		Text:       rec.Text,
		Kind:       domain.ParseKind(rec.Kind),
		SentAt:     rec.SentAt,
		ReceivedAt: rec.ReceivedAt,
	}
	if rec.FileName != nil || rec.FileType != nil || rec.FilePath != nil {
		m.File = &domain.FileMeta{Name: deref(rec.FileName), Type: deref(rec.FileType), Path: deref(rec.FilePath)}
	}
	return m
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
