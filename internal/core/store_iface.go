package core

import (
	"context"
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
)

// Page is one history window in ascending row order. NextBefore is set only
// when the page is full, meaning older rows may exist.
type Page struct {
	Items      []domain.Message
	NextBefore *int64
}

// MessageStore is the durable, append-only message table.
type MessageStore interface {
	// Append inserts m. A duplicate id is a no-op that returns the existing
	// row's sequence number with dup set.
	Append(ctx context.Context, m *domain.Message) (rowID int64, dup bool, err error)
	// RangeBefore returns up to limit rows of room older than before
	// (before <= 0 means unbounded).
	RangeBefore(ctx context.Context, room domain.RoomID, before int64, limit int) (Page, error)
	// ClearRoom deletes every row of room and returns their stored file paths.
	ClearRoom(ctx context.Context, room domain.RoomID) ([]string, error)
	// RoomOf resolves the room that owns rowID.
	RoomOf(ctx context.Context, rowID int64) (domain.RoomID, error)
}

// ErrTooLarge is returned by UploadStore.Ingest when the decoded payload
// exceeds the configured limit. Nothing is written in that case.
var ErrTooLarge = errors.New("upload too large")

// Upload is an inline attachment as received on the wire.
type Upload struct {
	Data     string // data URL, "...;base64,<payload>"
	MimeType string
	Name     string
	Room     domain.RoomID
}

// UploadStore keeps attachment blobs referenced by messages.
type UploadStore interface {
	Ingest(ctx context.Context, in Upload) (*domain.FileMeta, error)
	Remove(path string) error
}
