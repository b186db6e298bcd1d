package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Message stores an inbound chat message, acknowledges it to the sender and
// broadcasts it to the room. A store failure is logged and the message is
// still relayed with a null rowId. A retransmitted id is acknowledged with
// the stored row and not broadcast again.
func (o *Orchestrator) Message(ctx context.Context, sid core.SessionID, in protocol.Message) {
	room, ms, ok := o.member(sid)
	if !ok {
		return
	}
	user := ms.Meta().User
	// Without a joined user id the client's own senderId is echoed so it can
	// recognise its broadcasts.
	sender := user.ID
	if sender == domain.UserID(sid) {
		sender = domain.ParseUserID(in.SenderID, string(sid))
	}
	received := o.now()
	msg := &domain.Message{
		ID:         in.ID,
		RoomID:     room.Room().ID,
		SenderID:   sender,
		SenderName: user.Username,
		Text:       in.Text,
		Kind:       domain.ParseKind(in.MessageType),
		SentAt:     in.SentAt,
		ReceivedAt: received,
	}
	if msg.SentAt == "" {
		msg.SentAt = protocol.Timestamp(received)
	}

	if msg.Kind == domain.KindFile {
		msg.File = &domain.FileMeta{Name: in.FileName, Type: in.FileType}
		if in.FileData != "" {
			meta, err := o.Uploads.Ingest(ctx, core.Upload{
				Data:     in.FileData,
				MimeType: in.FileType,
				Name:     in.FileName,
				Room:     msg.RoomID,
			})
			switch {
			case errors.Is(err, core.ErrTooLarge):
				o.Metrics.Dropped("too_large")
				o.sendTo(room, ms, o.encode(protocol.System{
					Type: protocol.TypeSystem,
					Text: "file too large (max " + formatLimit(o.MaxUploadBytes) + ")",
					At:   o.stamp(),
				}))
				return
			case err != nil:
				log.Warn().Err(err).Str("module", "orch").Str("id", msg.ID).Msg("attachment not stored")
			default:
				msg.File = meta
			}
		}
	}

	var rowID *int64
	row, dup, err := o.Store.Append(ctx, msg)
	switch {
	case err != nil:
		o.Metrics.PersistFailed()
		log.Error().Err(err).Str("module", "orch").Str("room", string(msg.RoomID)).Str("id", msg.ID).Msg("persist message failed")
	case dup:
		rowID = &row
		if msg.File != nil && msg.File.Path != "" {
			if err := o.Uploads.Remove(msg.File.Path); err != nil {
				log.Warn().Err(err).Str("module", "orch").Str("path", msg.File.Path).Msg("duplicate upload cleanup failed")
			}
		}
	default:
		rowID = &row
		o.Metrics.Persisted()
	}

	at := protocol.Timestamp(received)
	o.sendTo(room, ms, o.encode(protocol.Received{
		Type:  protocol.TypeReceived,
		ID:    msg.ID,
		RowID: rowID,
		Text:  msg.Text,
		At:    at,
	}))
	if dup {
		log.Debug().Str("module", "orch").Str("id", msg.ID).Int64("row", row).Msg("duplicate message acknowledged")
		return
	}

	out := protocol.Broadcast{
		Type:        protocol.TypeBroadcast,
		ID:          msg.ID,
		SenderID:    string(msg.SenderID),
		Name:        msg.SenderName,
		RowID:       rowID,
		SentAt:      msg.SentAt,
		At:          at,
		MessageType: string(msg.Kind),
		Text:        msg.Text,
	}
	if msg.File != nil {
		out.FileName, out.FileType, out.FilePath = msg.File.Name, msg.File.Type, msg.File.Path
	}
	o.publish(room, o.encode(out))
}

// formatLimit renders a byte limit in whole MB, or KiB below 1 MiB, rounded up.
func formatLimit(n int64) string {
	if n < 1<<20 {
		return fmt.Sprintf("%d KiB", (n+1<<10-1)>>10)
	}
	return fmt.Sprintf("%d MB", (n+1<<20-1)>>20)
}
