// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultUsername = "Anon"
	MaxUserIDLen    = 64
)

type UserID string

// User is a self-declared identity. ID is stable across reconnects when the
// client supplies it.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"name"`
}

// NewUser builds a user from join input. An empty id falls back to fallback,
// which is the session identifier of the connection.
func NewUser(id, username, fallback string, maxNameLen int) *User {
	return &User{ID: ParseUserID(id, fallback), Username: CleanUsername(username, maxNameLen)}
}

// ParseUserID trims id, falls back when it is blank and caps its length.
func ParseUserID(id, fallback string) UserID {
	uid := strings.TrimSpace(id)
	if uid == "" {
		uid = fallback
	}
	if len(uid) > MaxUserIDLen {
		uid = uid[:MaxUserIDLen]
	}
	return UserID(uid)
}

// CleanUsername trims the name, applies the default and truncates to max runes.
func CleanUsername(name string, max int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultUsername
	}
	if max > 0 && utf8.RuneCountInString(name) > max {
		r := []rune(name)
		name = strings.TrimSpace(string(r[:max]))
	}
	return name
}
