package domain

import (
	"encoding/json"
	"time"
)

const (
	ChannelPublic  = "public"
	ChannelPrivate = "private"
)

// Channel is a multi-party named group thread. MemberIDs and AdminIDs are
// id sets; Normalize drops admins that are not members after decoding.
type Channel struct {
	ID           string     `json:"_id"`
	Slug         string     `json:"slug"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Icon         string     `json:"icon,omitempty"`
	Type         string     `json:"type"`
	MemberIDs    []string   `json:"members"`
	AdminIDs     []string   `json:"admins"`
	MemberCount  int        `json:"memberCount"`
	MessageCount int        `json:"messageCount"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	Order        int        `json:"order"`
	IsDefault    bool       `json:"isDefault"`
	IsMember     bool       `json:"isMember"`
	IsAdmin      bool       `json:"isAdmin"`
}

func (c *Channel) UnmarshalJSON(data []byte) error {
	type alias Channel
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.AltID
	}
	c.Normalize()
	return nil
}

// Normalize drops admin ids that are not members and fills MemberCount
// when the backend omitted it.
func (c *Channel) Normalize() {
	if len(c.AdminIDs) > 0 {
		members := make(map[string]struct{}, len(c.MemberIDs))
		for _, id := range c.MemberIDs {
			members[id] = struct{}{}
		}
		admins := c.AdminIDs[:0]
		for _, id := range c.AdminIDs {
			if _, ok := members[id]; ok {
				admins = append(admins, id)
			}
		}
		c.AdminIDs = admins
	}
	if c.MemberCount == 0 {
		c.MemberCount = len(c.MemberIDs)
	}
}

// ChannelDetail is the GET /api/channels/{slug} response: the channel with
// populated members, one page of messages, and any pinned messages.
type ChannelDetail struct {
	Channel        ChannelWithMembers `json:"channel"`
	Messages       []Message          `json:"messages"`
	PinnedMessages []Message          `json:"pinnedMessages,omitempty"`
	Pagination     *Pagination        `json:"pagination,omitempty"`
}

// ChannelWithMembers mirrors Channel but carries populated user records,
// the shape the single-channel endpoint returns.
type ChannelWithMembers struct {
	ID           string     `json:"_id"`
	Slug         string     `json:"slug"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Icon         string     `json:"icon,omitempty"`
	Type         string     `json:"type"`
	Members      []User     `json:"members"`
	Admins       []User     `json:"admins"`
	MemberCount  int        `json:"memberCount"`
	MessageCount int        `json:"messageCount"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	IsMember     bool       `json:"isMember"`
	IsAdmin      bool       `json:"isAdmin"`
}

func (c *ChannelWithMembers) UnmarshalJSON(data []byte) error {
	type alias ChannelWithMembers
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.AltID
	}
	return nil
}
