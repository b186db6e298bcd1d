package core

import (
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
)

// ErrStaleWatermark is returned when a read cursor does not advance the
// user's current watermark.
var ErrStaleWatermark = errors.New("stale watermark")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"name"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set and the ephemeral read/typing state but never
// touches transport resources beyond TrySend.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(ms MemberSession)
	RemoveMember(sid SessionID) (MemberSession, bool)
	Member(sid SessionID) (MemberSession, bool)
	MemberByUser(uid domain.UserID) (MemberSession, bool)

	// Broadcast delivers to every member, sender included.
	Broadcast(data Frame) PublishResult
	// BroadcastMembers builds a frame from the current membership and
	// delivers it under the same lock, so snapshots never go out of order.
	// A nil frame from build sends nothing.
	BroadcastMembers(build func([]MemberDTO) Frame) PublishResult

	// MarkRead advances uid's watermark and, when announce is non-nil,
	// broadcasts it while the room is still locked so announcements go out in
	// watermark order.
	MarkRead(uid domain.UserID, rowID int64, announce Frame) (PublishResult, error)
	Watermark(uid domain.UserID) (int64, bool)
	Watermarks() map[domain.UserID]int64

	SetTyping(uid domain.UserID, typing bool, announce Frame) PublishResult
	TypingUsers() []domain.UserID
}

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"members"`
}

// RoomManager owns the room table. Rooms are created on first join and
// discarded, with all their ephemeral state, when the last member leaves.
type RoomManager interface {
	Join(id domain.RoomID, ms MemberSession) RoomService
	// Leave removes sid from the room. The returned room may already be
	// discarded; it is still valid for a final broadcast to the remaining set.
	Leave(id domain.RoomID, sid SessionID) (RoomService, bool)
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Count() int
}
