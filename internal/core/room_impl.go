package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room

	mu     sync.Mutex
	bySID  map[SessionID]MemberSession
	reads  map[domain.UserID]int64
	typing map[domain.UserID]bool
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		bySID:  make(map[SessionID]MemberSession),
		reads:  make(map[domain.UserID]int64),
		typing: make(map[domain.UserID]bool),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[ms.ID()] = ms
	r.purgeLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(ms.ID())).Str("user", string(ms.Meta().User.ID)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return nil, false
	}
	delete(r.bySID, sid)
	r.purgeLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
	return ms, true
}

// purgeLocked drops read/typing entries of users with no live session here.
func (r *roomImpl) purgeLocked() {
	present := make(map[domain.UserID]struct{}, len(r.bySID))
	for _, ms := range r.bySID {
		present[ms.Meta().User.ID] = struct{}{}
	}
	for uid := range r.reads {
		if _, ok := present[uid]; !ok {
			delete(r.reads, uid)
		}
	}
	for uid := range r.typing {
		if _, ok := present[uid]; !ok {
			delete(r.typing, uid)
		}
	}
}

func (r *roomImpl) Member(sid SessionID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) MemberByUser(uid domain.UserID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ms := range r.bySID {
		if ms.Meta().User.ID == uid {
			return ms, true
		}
	}
	return nil, false
}

func (r *roomImpl) Broadcast(data Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(data)
}

func (r *roomImpl) broadcastLocked(data Frame) PublishResult {
	res := PublishResult{}
	for _, m := range r.bySID {
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MarkRead(uid domain.UserID, rowID int64, announce Frame) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rowID <= r.reads[uid] {
		return PublishResult{}, ErrStaleWatermark
	}
	r.reads[uid] = rowID
	if announce == nil {
		return PublishResult{}, nil
	}
	return r.broadcastLocked(announce), nil
}

func (r *roomImpl) Watermark(uid domain.UserID) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.reads[uid]
	return v, ok
}

func (r *roomImpl) Watermarks() map[domain.UserID]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.UserID]int64, len(r.reads))
	for uid, v := range r.reads {
		out[uid] = v
	}
	return out
}

func (r *roomImpl) SetTyping(uid domain.UserID, typing bool, announce Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if typing {
		r.typing[uid] = true
	} else {
		delete(r.typing, uid)
	}
	if announce == nil {
		return PublishResult{}
	}
	return r.broadcastLocked(announce)
}

func (r *roomImpl) TypingUsers() []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.UserID, 0, len(r.typing))
	for uid := range r.typing {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *roomImpl) BroadcastMembers(build func([]MemberDTO) Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := build(r.snapshotLocked())
	if data == nil {
		return PublishResult{}
	}
	return r.broadcastLocked(data)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *roomImpl) snapshotLocked() []MemberDTO {
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		u := ms.Meta().User
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
