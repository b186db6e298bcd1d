package domain

import (
	"regexp"
	"time"
)

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

// ParseKind maps wire values to a kind; anything but "file" is text.
func ParseKind(s string) MessageKind {
	if MessageKind(s) == KindFile {
		return KindFile
	}
	return KindText
}

// FileMeta describes a stored attachment. Path is relative and web-servable.
type FileMeta struct {
	Name string `json:"fileName,omitempty"`
	Type string `json:"fileType,omitempty"`
	Path string `json:"filePath,omitempty"`
}

// Message is immutable once stored. RowID is assigned by the store.
type Message struct {
	RowID      int64
	ID         string
	RoomID     RoomID
	SenderID   UserID
	SenderName string
	Text       string
	Kind       MessageKind
	File       *FileMeta
	SentAt     string
	ReceivedAt time.Time
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName replaces every character outside [a-zA-Z0-9._-] with '_'.
func SanitizeFileName(name string) string {
	if name == "" {
		name = "file"
	}
	clean := unsafeNameChars.ReplaceAllString(name, "_")
	if clean == "." || clean == ".." {
		return "file"
	}
	return clean
}
