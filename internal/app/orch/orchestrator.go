// Package orch is the session broker: it dispatches decoded frames from a
// connection to the room, store, upload and call components and runs the
// disconnect cleanup.
package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/call"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// ErrForeignRow marks a read cursor that does not belong to the reader's room.
var ErrForeignRow = errors.New("row belongs to another room")

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Calls    *call.Relay
	Store    core.MessageStore
	Uploads  core.UploadStore
	Metrics  *metrics.Metrics

	HistoryLimit   int
	MaxNameLen     int
	MaxUploadBytes int64

	// Now is the clock for server timestamps; nil means time.Now.
	Now func() time.Time
}

// OnConnect registers a new connection and greets it.
func (o *Orchestrator) OnConnect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.BindSignal(sid, conn, cancel)
	_ = conn.TrySend(o.encode(protocol.System{Type: protocol.TypeSystem, Text: "connected", At: o.stamp()}))
	o.Metrics.SetSessions(o.Registry.Count())
}

// HandleFrame runs one inbound frame to completion. A disconnect does not
// cancel it; cleanup happens in OnDisconnect.
func (o *Orchestrator) HandleFrame(ctx context.Context, sid core.SessionID, in protocol.Inbound) {
	ctx = context.WithoutCancel(ctx)
	o.Metrics.Frame(string(in.Kind()))

	switch f := in.(type) {
	case protocol.Join:
		o.Join(ctx, sid, f)
	case protocol.Message:
		o.Message(ctx, sid, f)
	case protocol.History:
		o.History(ctx, sid, f)
	case protocol.Typing:
		o.Typing(sid, f)
	case protocol.Read:
		o.Read(ctx, sid, f)
	case protocol.ClearRoom:
		o.ClearRoom(ctx, sid)
	case protocol.Call:
		o.Call(sid, f)
	default:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("type", string(in.Kind())).Msg("unhandled frame")
	}
}

// OnDisconnect ends the connection's call, if it carried one, and removes
// it from its room.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if roomID, ms, ok := o.Registry.RoomOf(sid); ok {
		user := ms.Meta().User
		o.endCall(sid, roomID, user.ID)
		o.leave(sid, roomID, user.Username)
	}
	o.Registry.Unbind(sid)
	o.Metrics.SetSessions(o.Registry.Count())
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("session closed")
}

// KickBySID closes the connection; its read loop then reports the
// disconnect through OnDisconnect.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	if o.Registry.Cancel(sid) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("kicked slow consumer")
	}
}

// member returns the joined session of sid together with its room.
func (o *Orchestrator) member(sid core.SessionID) (core.RoomService, core.MemberSession, bool) {
	roomID, ms, ok := o.Registry.RoomOf(sid)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("frame before join dropped")
		return nil, nil, false
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, nil, false
	}
	return room, ms, true
}

func (o *Orchestrator) publish(room core.RoomService, data core.Frame) {
	if data == nil {
		return
	}
	o.onPublish(room, room.Broadcast(data))
}

func (o *Orchestrator) onPublish(room core.RoomService, res core.PublishResult) {
	for _, slow := range res.Dropped {
		o.onBackPressure(room, slow)
	}
}

// sendTo delivers a frame to a single session.
func (o *Orchestrator) sendTo(room core.RoomService, ms core.MemberSession, data core.Frame) {
	if data == nil {
		return
	}
	if err := ms.Signal().TrySend(data); err != nil {
		o.onBackPressure(room, ms)
	}
}

func (o *Orchestrator) onBackPressure(room core.RoomService, slow core.MemberSession) {
	o.Metrics.Dropped("backpressure")
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(room, slow) {
	case app.KickMember:
		o.KickBySID(slow.ID())
	case app.DropFrame:
		log.Debug().Str("module", "orch").Str("sid", string(slow.ID())).Msg("frame dropped for slow consumer")
	}
}

func (o *Orchestrator) encode(v any) core.Frame {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode frame")
		return nil
	}
	return data
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) stamp() string { return protocol.Timestamp(o.now()) }
