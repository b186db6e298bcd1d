package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownType  = errors.New("unknown frame type")
	ErrMissingField = errors.New("missing required field")
)

type wireFrame struct {
	Type        Kind            `json:"type"`
	RoomID      string          `json:"roomId"`
	Name        string          `json:"name"`
	UserID      string          `json:"userId"`
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	SentAt      string          `json:"sentAt"`
	MessageType string          `json:"messageType"`
	Text        string          `json:"text"`
	FileName    string          `json:"fileName"`
	FileType    string          `json:"fileType"`
	FileData    string          `json:"fileData"`
	BeforeRowID json.RawMessage `json:"beforeRowId"`
	RowID       json.RawMessage `json:"rowId"`
	IsTyping    bool            `json:"isTyping"`
	To          string          `json:"to"`
	SDP         json.RawMessage `json:"sdp"`
	Candidate   json.RawMessage `json:"candidate"`
	CallType    string          `json:"callType"`
	Enabled     bool            `json:"enabled"`
}

// Decode parses one client frame.
func Decode(data []byte) (Inbound, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Type {
	case TypeJoin:
		room := strings.TrimSpace(w.RoomID)
		if room == "" {
			return nil, fmt.Errorf("%w: roomId", ErrMissingField)
		}
		return Join{RoomID: room, Name: w.Name, UserID: strings.TrimSpace(w.UserID)}, nil
	case TypeMessage:
		if w.ID == "" {
			return nil, fmt.Errorf("%w: id", ErrMissingField)
		}
		return Message{
			ID:          w.ID,
			SenderID:    w.SenderID,
			SentAt:      w.SentAt,
			MessageType: w.MessageType,
			Text:        w.Text,
			FileName:    w.FileName,
			FileType:    w.FileType,
			FileData:    w.FileData,
		}, nil
	case TypeHistory:
		before, _ := parseRowID(w.BeforeRowID)
		return History{BeforeRowID: before}, nil
	case TypeTyping:
		return Typing{IsTyping: w.IsTyping}, nil
	case TypeRead:
		row, ok := parseRowID(w.RowID)
		if !ok {
			return nil, fmt.Errorf("%w: rowId", ErrMissingField)
		}
		return Read{RowID: row}, nil
	case TypeClearRoom:
		return ClearRoom{}, nil
	}

	if w.Type.IsCall() {
		to := strings.TrimSpace(w.To)
		if to == "" {
			return nil, fmt.Errorf("%w: to", ErrMissingField)
		}
		return Call{
			Type:      w.Type,
			To:        to,
			SDP:       nullToNil(w.SDP),
			Candidate: nullToNil(w.Candidate),
			CallType:  w.CallType,
			Enabled:   w.Enabled,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
}

// parseRowID accepts a positive integer given as a JSON number or string.
func parseRowID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func nullToNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
