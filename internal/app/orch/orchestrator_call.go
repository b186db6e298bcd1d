package orch

import (
	"errors"

	"github.com/dkeye/Huddle/internal/app/call"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Call relays one call_* frame. SDP and ICE payloads pass through untouched;
// a frame whose target cannot be reached is dropped.
func (o *Orchestrator) Call(sid core.SessionID, c protocol.Call) {
	room, ms, ok := o.member(sid)
	if !ok {
		return
	}
	user := ms.Meta().User
	from := call.Party{User: user.ID, SID: sid}
	to := domain.UserID(c.To)
	roomID := room.Room().ID

	out := protocol.CallSignal{Type: c.Type, From: string(user.ID), Name: user.Username}
	defer func() { o.Metrics.SetPairings(o.Calls.Count()) }()

	switch c.Type {
	case protocol.TypeCallOffer:
		target, ok := room.MemberByUser(to)
		if !ok {
			o.relayDropped(sid, c, "target not in room")
			return
		}
		err := o.Calls.Offer(from, call.Party{User: to, SID: target.ID()})
		if errors.Is(err, call.ErrBusy) {
			o.sendTo(room, ms, o.encode(protocol.CallSignal{Type: protocol.TypeCallBusy, From: string(to)}))
			log.Info().Str("module", "call").Str("from", string(user.ID)).Str("to", string(to)).Msg("offer rejected, busy")
			return
		}
		out.SDP, out.CallType = c.SDP, c.CallType
		o.sendTo(room, target, o.encode(out))

	case protocol.TypeCallAnswer:
		if err := o.Calls.Answer(user.ID, sid, to); err != nil {
			o.relayDropped(sid, c, err.Error())
			return
		}
		out.SDP = c.SDP
		o.forwardToPeer(sid, c, roomID, user.ID, to, out)

	case protocol.TypeCallICE:
		out.Candidate = c.Candidate
		o.forwardToPeer(sid, c, roomID, user.ID, to, out)

	case protocol.TypeCallBlur:
		enabled := c.Enabled
		out.Enabled = &enabled
		o.forwardToPeer(sid, c, roomID, user.ID, to, out)

	case protocol.TypeCallEnd, protocol.TypeCallReject, protocol.TypeCallBusy:
		peer, paired := o.Calls.Peer(user.ID, to)
		o.Calls.End(user.ID, to)
		if !paired {
			peer = call.Party{User: to}
		}
		if !o.forward(peer, roomID, out) {
			o.relayDropped(sid, c, "target not found")
		}
	}
}

// forwardToPeer relays out only while user and to are paired.
func (o *Orchestrator) forwardToPeer(sid core.SessionID, c protocol.Call, roomID domain.RoomID, user, to domain.UserID, out protocol.CallSignal) {
	peer, ok := o.Calls.Peer(user, to)
	if !ok {
		o.relayDropped(sid, c, call.ErrNoPairing.Error())
		return
	}
	if !o.forward(peer, roomID, out) {
		o.relayDropped(sid, c, "target not found")
	}
}

// forward sends out to the party's pinned connection, falling back to any
// session of that user in roomID.
func (o *Orchestrator) forward(p call.Party, roomID domain.RoomID, out protocol.CallSignal) bool {
	var target core.MemberSession
	if p.SID != "" {
		if ms, ok := o.Registry.GetSession(p.SID); ok && ms.Meta().User.ID == p.User {
			target = ms
		}
	}
	if target == nil {
		room, ok := o.Rooms.Get(roomID)
		if !ok {
			return false
		}
		if target, ok = room.MemberByUser(p.User); !ok {
			return false
		}
	}
	targetRoom, _ := o.Rooms.Get(target.Meta().Room)
	o.sendTo(targetRoom, target, o.encode(out))
	return true
}

// endCall drops the pairing uid holds through sid and sends call_end to
// the peer.
func (o *Orchestrator) endCall(sid core.SessionID, roomID domain.RoomID, uid domain.UserID) {
	peer, ok := o.Calls.Drop(uid, sid)
	if !ok {
		return
	}
	o.forward(peer, roomID, protocol.CallSignal{Type: protocol.TypeCallEnd, From: string(uid)})
	o.Metrics.SetPairings(o.Calls.Count())
	log.Info().Str("module", "call").Str("sid", string(sid)).Str("user", string(uid)).Str("peer", string(peer.User)).Msg("call ended with session")
}

func (o *Orchestrator) relayDropped(sid core.SessionID, c protocol.Call, reason string) {
	o.Metrics.Dropped("relay")
	log.Debug().Str("module", "call").Str("sid", string(sid)).Str("type", string(c.Type)).Str("to", c.To).Str("reason", reason).Msg("call frame dropped")
}
