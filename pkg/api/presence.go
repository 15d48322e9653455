package api

import "github.com/goccy/go-json"

// Identity is an externally supplied user profile.
type Identity struct {
	Id      string          `json:"id" validate:"required,max=256"`
	Name    string          `json:"name,omitempty" validate:"max=256"`
	Avatar  string          `json:"avatar,omitempty" validate:"omitempty,url"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

type PresenceEntry struct {
	Identity     Identity `json:"identity"`
	ConnectionId string   `json:"connection_id"`
}

type RosterNotice = []PresenceEntry
