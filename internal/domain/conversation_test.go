package domain

import (
	"encoding/json"
	"testing"
)

func TestConversationUnmarshalParticipantShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "ids as strings",
			raw:  `{"_id": "c1", "participants": ["u1", "u2"], "lastMessage": "hey"}`,
			want: []string{"u1", "u2"},
		},
		{
			name: "populated users",
			raw:  `{"_id": "c1", "participants": [{"_id": "u1"}, {"_id": "u2"}]}`,
			want: []string{"u1", "u2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Conversation
			if err := json.Unmarshal([]byte(tt.raw), &c); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if c.ID != "c1" {
				t.Errorf("ID = %q, want c1", c.ID)
			}
			if len(c.ParticipantIDs) != len(tt.want) {
				t.Fatalf("participants = %v, want %v", c.ParticipantIDs, tt.want)
			}
			for i, id := range tt.want {
				if c.ParticipantIDs[i] != id {
					t.Errorf("participant %d = %q, want %q", i, c.ParticipantIDs[i], id)
				}
			}
		})
	}
}

func TestResolveOther(t *testing.T) {
	directory := []User{
		{ID: "u1", Username: "ana"},
		{ID: "u2", Username: "bo"},
	}
	conv := Conversation{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}

	other := conv.ResolveOther("u1", directory)
	if other == nil || other.ID != "u2" {
		t.Fatalf("ResolveOther = %+v, want u2", other)
	}

	// Counterpart missing from the directory: nil, never a stale record.
	conv2 := Conversation{ID: "c2", ParticipantIDs: []string{"u1", "u9"}}
	if got := conv2.ResolveOther("u1", directory); got != nil {
		t.Errorf("ResolveOther with unknown counterpart = %+v, want nil", got)
	}
}

func TestChannelNormalizeAdminsSubsetOfMembers(t *testing.T) {
	raw := `{
		"_id": "ch1",
		"slug": "general",
		"name": "General",
		"type": "public",
		"members": ["u1", "u2"],
		"admins": ["u1", "u9"]
	}`

	var ch Channel
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(ch.AdminIDs) != 1 || ch.AdminIDs[0] != "u1" {
		t.Errorf("AdminIDs = %v, want [u1] (admins must be members)", ch.AdminIDs)
	}
	if ch.MemberCount != 2 {
		t.Errorf("MemberCount = %d, want 2", ch.MemberCount)
	}
}
