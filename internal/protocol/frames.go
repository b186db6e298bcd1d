// Package protocol defines the JSON frames exchanged over the room channel.
// Inbound frames are decoded into a closed set of types at the boundary;
// anything else is reported as a protocol error.
package protocol

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	TypeJoin       Kind = "join"
	TypeMessage    Kind = "message"
	TypeHistory    Kind = "history"
	TypeTyping     Kind = "typing"
	TypeRead       Kind = "read"
	TypeClearRoom  Kind = "clear_room"
	TypeCallOffer  Kind = "call_offer"
	TypeCallAnswer Kind = "call_answer"
	TypeCallICE    Kind = "call_ice"
	TypeCallEnd    Kind = "call_end"
	TypeCallReject Kind = "call_reject"
	TypeCallBusy   Kind = "call_busy"
	TypeCallBlur   Kind = "call_blur"

	TypeJoined    Kind = "joined"
	TypeReceived  Kind = "received"
	TypeBroadcast Kind = "broadcast"
	TypeMembers   Kind = "members"
	TypeCleared   Kind = "cleared"
	TypeSystem    Kind = "system"
)

// IsCall reports whether k is one of the call signaling kinds.
func (k Kind) IsCall() bool {
	switch k {
	case TypeCallOffer, TypeCallAnswer, TypeCallICE, TypeCallEnd, TypeCallReject, TypeCallBusy, TypeCallBlur:
		return true
	}
	return false
}

// Inbound is a decoded client frame.
type Inbound interface {
	Kind() Kind
}

type Join struct {
	RoomID string
	Name   string
	UserID string
}

type Message struct {
	ID          string
	SenderID    string
	SentAt      string
	MessageType string
	Text        string
	FileName    string
	FileType    string
	FileData    string
}

// History asks for the page older than BeforeRowID; zero means newest.
type History struct {
	BeforeRowID int64
}

type Typing struct {
	IsTyping bool
}

type Read struct {
	RowID int64
}

type ClearRoom struct{}

// Call is any call_* frame. SDP and Candidate stay opaque.
type Call struct {
	Type      Kind
	To        string
	SDP       json.RawMessage
	Candidate json.RawMessage
	CallType  string
	Enabled   bool
}

func (Join) Kind() Kind      { return TypeJoin }
func (Message) Kind() Kind   { return TypeMessage }
func (History) Kind() Kind   { return TypeHistory }
func (Typing) Kind() Kind    { return TypeTyping }
func (Read) Kind() Kind      { return TypeRead }
func (ClearRoom) Kind() Kind { return TypeClearRoom }
func (c Call) Kind() Kind    { return c.Type }

// Timestamp renders t the way browsers print Date.toISOString.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
