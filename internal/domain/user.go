package domain

import (
	"encoding/json"
	"time"
)

type User struct {
	ID          string     `json:"_id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	AvatarURL   string     `json:"avatar,omitempty"`
	Role        string     `json:"role"`
	IsOnline    bool       `json:"isOnline"`
	Status      string     `json:"status,omitempty"`
	LastSeenAt  *time.Time `json:"lastSeen,omitempty"`
}

// UnmarshalJSON tolerates both identifier spellings the backend uses
// ("_id" in Mongo-shaped payloads, "id" in a few older responses).
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

// Presence statuses accepted by PATCH /api/users/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)
