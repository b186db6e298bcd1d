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

// Join binds sid to a room. A connection already in another room leaves it
// first; a repeated join into the same room only refreshes the identity.
// A call carried by sid ends when the user id changes.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, j protocol.Join) {
	roomID, ok := domain.ParseRoomID(j.RoomID)
	if !ok {
		return
	}
	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}
	user := domain.NewUser(j.UserID, j.Name, string(sid), o.MaxNameLen)
	if prev, prevMS, ok := o.Registry.RoomOf(sid); ok {
		old := prevMS.Meta().User
		if old.ID != user.ID {
			o.endCall(sid, prev, old.ID)
		}
		if prev != roomID {
			o.leave(sid, prev, old.Username)
		}
	}

	ms := core.NewMemberSession(sid, domain.NewMember(user, roomID), conn)
	room := o.Rooms.Join(roomID, ms)
	o.Registry.BindSession(sid, roomID, ms)
	o.Metrics.SetRooms(o.Rooms.Count())
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", string(user.ID)).Msg("joined room")

	o.sendTo(room, ms, o.encode(protocol.Joined{
		Type:   protocol.TypeJoined,
		RoomID: string(roomID),
		Name:   user.Username,
		At:     o.stamp(),
	}))
	o.sendHistory(ctx, room, ms, 0)
	o.publishMembers(room)
	o.publish(room, o.encode(protocol.System{
		Type: protocol.TypeSystem,
		Text: user.Username + " joined",
		At:   o.stamp(),
	}))
}

// leave removes sid from roomID and tells whoever is left.
func (o *Orchestrator) leave(sid core.SessionID, roomID domain.RoomID, name string) {
	room, ok := o.Rooms.Leave(roomID, sid)
	o.Registry.RemoveRoom(sid)
	o.Metrics.SetRooms(o.Rooms.Count())
	if !ok {
		return
	}
	o.publishMembers(room)
	o.publish(room, o.encode(protocol.System{
		Type: protocol.TypeSystem,
		Text: name + " left",
		At:   o.stamp(),
	}))
}

func (o *Orchestrator) publishMembers(room core.RoomService) {
	res := room.BroadcastMembers(func(members []core.MemberDTO) core.Frame {
		out := protocol.Members{Type: protocol.TypeMembers, Members: make([]protocol.Member, 0, len(members))}
		for _, m := range members {
			out.Members = append(out.Members, protocol.Member{ID: string(m.ID), Name: m.Username})
		}
		return o.encode(out)
	})
	o.onPublish(room, res)
}

func (o *Orchestrator) History(ctx context.Context, sid core.SessionID, h protocol.History) {
	room, ms, ok := o.member(sid)
	if !ok {
		return
	}
	o.sendHistory(ctx, room, ms, h.BeforeRowID)
}

// sendHistory sends one page to ms. A failed read yields an empty page.
func (o *Orchestrator) sendHistory(ctx context.Context, room core.RoomService, ms core.MemberSession, before int64) {
	roomID := room.Room().ID
	page, err := o.Store.RangeBefore(ctx, roomID, before, o.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("history read failed")
		page = core.Page{}
	}
	out := protocol.HistoryPage{
		Type:       protocol.TypeHistory,
		Items:      make([]protocol.HistoryItem, 0, len(page.Items)),
		NextBefore: page.NextBefore,
	}
	for _, m := range page.Items {
		item := protocol.HistoryItem{
			RowID:       m.RowID,
			ID:          m.ID,
			RoomID:      string(m.RoomID),
			SenderID:    string(m.SenderID),
			Name:        m.SenderName,
			Text:        m.Text,
			SentAt:      m.SentAt,
			ReceivedAt:  protocol.Timestamp(m.ReceivedAt),
			MessageType: string(m.Kind),
		}
		if m.File != nil {
			item.FileName, item.FileType, item.FilePath = m.File.Name, m.File.Type, m.File.Path
		}
		out.Items = append(out.Items, item)
	}
	o.sendTo(room, ms, o.encode(out))
}

func (o *Orchestrator) Typing(sid core.SessionID, t protocol.Typing) {
	room, ms, ok := o.member(sid)
	if !ok {
		return
	}
	user := ms.Meta().User
	res := room.SetTyping(user.ID, t.IsTyping, o.encode(protocol.TypingState{
		Type:     protocol.TypeTyping,
		UserID:   string(user.ID),
		Name:     user.Username,
		IsTyping: t.IsTyping,
	}))
	o.onPublish(room, res)
}

// Read advances the reader's watermark. Rows of other rooms are rejected
// with ErrForeignRow; stale rows are ignored.
func (o *Orchestrator) Read(ctx context.Context, sid core.SessionID, r protocol.Read) {
	room, ms, ok := o.member(sid)
	if !ok {
		return
	}
	if err := o.checkRow(ctx, room.Room().ID, r.RowID); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Int64("row", r.RowID).Msg("read dropped")
		return
	}
	uid := ms.Meta().User.ID
	res, err := room.MarkRead(uid, r.RowID, o.encode(protocol.ReadState{
		Type:   protocol.TypeRead,
		UserID: string(uid),
		RowID:  r.RowID,
	}))
	if errors.Is(err, core.ErrStaleWatermark) {
		log.Debug().Str("module", "orch").Str("user", string(uid)).Int64("row", r.RowID).Msg("stale read ignored")
		return
	}
	o.onPublish(room, res)
}

func (o *Orchestrator) checkRow(ctx context.Context, roomID domain.RoomID, rowID int64) error {
	owner, err := o.Store.RoomOf(ctx, rowID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForeignRow, err)
	}
	if owner != roomID {
		return ErrForeignRow
	}
	return nil
}

// ClearRoom deletes the room's history and its uploads, then tells members
// to wipe their local log. Files that fail to delete are skipped.
func (o *Orchestrator) ClearRoom(ctx context.Context, sid core.SessionID) {
	room, _, ok := o.member(sid)
	if !ok {
		return
	}
	roomID := room.Room().ID
	paths, err := o.Store.ClearRoom(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("clear room failed")
		return
	}
	for _, p := range paths {
		if err := o.Uploads.Remove(p); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("path", p).Msg("upload cleanup failed")
		}
	}
	log.Info().Str("module", "orch").Str("room", string(roomID)).Int("files", len(paths)).Msg("room cleared")
	o.publish(room, o.encode(protocol.Cleared{Type: protocol.TypeCleared}))
}
