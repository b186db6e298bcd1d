package domain

import "strings"

type RoomID string

type Room struct {
	ID RoomID
}

// ParseRoomID trims raw input; ok is false for an empty id.
func ParseRoomID(raw string) (RoomID, bool) {
	id := strings.TrimSpace(raw)
	return RoomID(id), id != ""
}
