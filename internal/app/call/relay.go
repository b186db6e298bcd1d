// Package call keeps the ephemeral pairing table behind call signaling.
// It stores who is talking to whom and never looks at SDP or ICE payloads.
package call

import (
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrBusy      = errors.New("user busy")
	ErrNoPairing = errors.New("no pairing")
)

type pairState int

const (
	idle pairState = iota
	offering
	active
)

// Party is one side of a pairing. SID is the connection that carries the
// call for that user; it may be empty before the callee's first frame.
type Party struct {
	User domain.UserID
	SID  core.SessionID
}

type pairing struct {
	caller Party
	callee Party
	state  pairState
}

func (p *pairing) side(uid domain.UserID) (self, peer *Party) {
	if p.caller.User == uid {
		return &p.caller, &p.callee
	}
	return &p.callee, &p.caller
}

// Relay is the pairing table. A user is in at most one pairing.
type Relay struct {
	mu     sync.Mutex
	byUser map[domain.UserID]*pairing
}

func NewRelay() *Relay {
	return &Relay{byUser: make(map[domain.UserID]*pairing)}
}

// Offer pairs from with to. It returns ErrBusy, leaving the table untouched,
// when either user is already paired with someone else. A repeated offer
// between the same two users keeps the pairing and its state.
func (r *Relay) Offer(from, to Party) error {
	if from.User == to.User {
		return ErrBusy
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byUser[from.User]; ok {
		if r.byUser[to.User] == p {
			self, peer := p.side(from.User)
			self.SID = from.SID
			if to.SID != "" {
				peer.SID = to.SID
			}
			return nil
		}
		return ErrBusy
	}
	if _, ok := r.byUser[to.User]; ok {
		return ErrBusy
	}

	p := &pairing{caller: from, callee: to, state: offering}
	r.byUser[from.User] = p
	r.byUser[to.User] = p
	log.Info().Str("module", "call").Str("from", string(from.User)).Str("to", string(to.User)).Msg("pairing created")
	return nil
}

// Answer moves the pairing between from and to to active and pins the
// answering connection.
func (r *Relay) Answer(from domain.UserID, sid core.SessionID, to domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pairedLocked(from, to)
	if !ok {
		return ErrNoPairing
	}
	self, _ := p.side(from)
	self.SID = sid
	p.state = active
	log.Info().Str("module", "call").Str("from", string(from)).Str("to", string(to)).Msg("pairing active")
	return nil
}

// Peer returns the party on the other side of a's pairing with b.
func (r *Relay) Peer(a, b domain.UserID) (Party, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pairedLocked(a, b)
	if !ok {
		return Party{}, false
	}
	_, peer := p.side(a)
	return *peer, true
}

// stateOf reports the state between a and b, idle when they are not paired.
func (r *Relay) stateOf(a, b domain.UserID) pairState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pairedLocked(a, b); ok {
		return p.state
	}
	return idle
}

// busy reports whether uid is in any pairing.
func (r *Relay) busy(uid domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[uid]
	return ok
}

// End tears down the pairing between from and to. It reports whether one existed.
func (r *Relay) End(from, to domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pairedLocked(from, to)
	if !ok {
		return false
	}
	r.removeLocked(p)
	log.Info().Str("module", "call").Str("from", string(from)).Str("to", string(to)).Msg("pairing ended")
	return true
}

// Drop removes uid's pairing when sid is the connection carrying it (or no
// connection was pinned yet) and returns the peer to notify.
func (r *Relay) Drop(uid domain.UserID, sid core.SessionID) (Party, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byUser[uid]
	if !ok {
		return Party{}, false
	}
	self, peer := p.side(uid)
	if self.SID != "" && self.SID != sid {
		return Party{}, false
	}
	out := *peer
	r.removeLocked(p)
	log.Info().Str("module", "call").Str("user", string(uid)).Str("peer", string(out.User)).Msg("pairing dropped on disconnect")
	return out, true
}

func (r *Relay) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser) / 2
}

func (r *Relay) pairedLocked(a, b domain.UserID) (*pairing, bool) {
	p, ok := r.byUser[a]
	if !ok || r.byUser[b] != p {
		return nil, false
	}
	return p, true
}

func (r *Relay) removeLocked(p *pairing) {
	delete(r.byUser, p.caller.User)
	delete(r.byUser, p.callee.User)
}
