package protocol

import "encoding/json"

type Joined struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	At     string `json:"at"`
}

// Received acknowledges a message to its sender. RowID is null when the
// message could not be persisted.
type Received struct {
	Type  Kind   `json:"type"`
	ID    string `json:"id"`
	RowID *int64 `json:"rowId"`
	Text  string `json:"text"`
	At    string `json:"at"`
}

type Broadcast struct {
	Type        Kind   `json:"type"`
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	Name        string `json:"name"`
	RowID       *int64 `json:"rowId"`
	SentAt      string `json:"sentAt"`
	At          string `json:"at"`
	MessageType string `json:"messageType"`
	Text        string `json:"text"`
	FileName    string `json:"fileName,omitempty"`
	FileType    string `json:"fileType,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
}

// HistoryItem is one stored message as listed in a history page.
type HistoryItem struct {
	RowID       int64  `json:"rowId"`
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	SenderID    string `json:"senderId"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	SentAt      string `json:"sentAt"`
	ReceivedAt  string `json:"receivedAt"`
	MessageType string `json:"messageType"`
	FileName    string `json:"fileName,omitempty"`
	FileType    string `json:"fileType,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
}

type HistoryPage struct {
	Type       Kind          `json:"type"`
	Items      []HistoryItem `json:"items"`
	NextBefore *int64        `json:"nextBefore"`
}

type TypingState struct {
	Type     Kind   `json:"type"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}

type ReadState struct {
	Type   Kind   `json:"type"`
	UserID string `json:"userId"`
	RowID  int64  `json:"rowId"`
}

type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Members struct {
	Type    Kind     `json:"type"`
	Members []Member `json:"members"`
}

type Cleared struct {
	Type Kind `json:"type"`
}

type System struct {
	Type Kind   `json:"type"`
	Text string `json:"text"`
	At   string `json:"at"`
}

// CallSignal is a relayed call_* frame. From and Name are set by the server.
type CallSignal struct {
	Type      Kind            `json:"type"`
	From      string          `json:"from"`
	Name      string          `json:"name,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	CallType  string          `json:"callType,omitempty"`
	Enabled   *bool           `json:"enabled,omitempty"`
}

// Encode marshals an outbound frame.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
