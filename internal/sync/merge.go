package sync

import (
	"sort"

	"github.com/alphachat/alphachat-go/internal/domain"
)

// MergeMessage upserts msg into seq and returns the result ordered by
// CreatedAt with id as the tie-break. The same message arriving from the
// send response, a push event, or a fetched page, in any order, converges
// to a single entry. seq itself is never written: snapshots already handed
// to readers stay valid while the repository keeps merging.
func MergeMessage(seq []domain.Message, msg domain.Message) []domain.Message {
	for i := range seq {
		if seq[i].ID == msg.ID {
			out := make([]domain.Message, len(seq))
			copy(out, seq)
			out[i] = reconcile(out[i], msg)
			sortMessages(out)
			return out
		}
	}

	i := sort.Search(len(seq), func(i int) bool {
		return msg.Before(&seq[i])
	})
	out := make([]domain.Message, 0, len(seq)+1)
	out = append(out, seq[:i]...)
	out = append(out, msg)
	out = append(out, seq[i:]...)
	return out
}

// MergePage merges a fetched history page into a live sequence.
func MergePage(seq []domain.Message, page []domain.Message) []domain.Message {
	for _, msg := range page {
		seq = MergeMessage(seq, msg)
	}
	return seq
}

// RemoveMessage drops the entry with the given id, if present, without
// writing seq. Used to retire an optimistic local message once the
// server-confirmed record replaces it.
func RemoveMessage(seq []domain.Message, id string) []domain.Message {
	for i := range seq {
		if seq[i].ID == id {
			out := make([]domain.Message, 0, len(seq)-1)
			out = append(out, seq[:i]...)
			return append(out, seq[i+1:]...)
		}
	}
	return seq
}

// reconcile folds a second sighting of a message into the existing entry.
// Identity fields are first-write-wins; mutable fields are last-write-wins
// on their own monotonic markers, so the result does not depend on which
// source arrived first.
func reconcile(old, in domain.Message) domain.Message {
	out := old

	if out.SenderID == "" {
		out.SenderID = in.SenderID
	}
	if out.Sender == nil {
		out.Sender = in.Sender
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}
	if out.ConversationID == "" {
		out.ConversationID = in.ConversationID
	}
	if out.ChannelID == "" {
		out.ChannelID = in.ChannelID
	}

	// An edit wins over the older content.
	if in.EditedAt != nil && (out.EditedAt == nil || in.EditedAt.After(*out.EditedAt)) {
		out.Content = in.Content
		out.EditedAt = in.EditedAt
	} else if out.Content == "" {
		out.Content = in.Content
	}
	if out.Kind == "" {
		out.Kind = in.Kind
	}
	if out.CodeLanguage == "" {
		out.CodeLanguage = in.CodeLanguage
	}

	// Delivery and read flags only ever go from false to true.
	out.Delivered = out.Delivered || in.Delivered
	out.Read = out.Read || in.Read

	// Deletion is set once and never reverted.
	if out.DeletedAt == nil {
		out.DeletedAt = in.DeletedAt
	}

	out.IsPinned = in.IsPinned

	// Any server sighting confirms an optimistic append.
	out.Pending = out.Pending && in.Pending

	return out
}

func sortMessages(seq []domain.Message) {
	sort.Slice(seq, func(i, j int) bool {
		return seq[i].Before(&seq[j])
	})
}

// markConversationRead flags every message the reader received (any
// message they did not send) as read. Applied when a messagesRead push
// arrives.
func markConversationRead(seq []domain.Message, readerID string) []domain.Message {
	out := make([]domain.Message, len(seq))
	copy(out, seq)
	for i := range out {
		if out[i].SenderID != readerID {
			out[i].Read = true
		}
	}
	return out
}

// applyPresence refreshes the presence fields of the user directory from a
// full snapshot. Users absent from the snapshot are offline. Only presence
// events mutate these fields.
func applyPresence(users []domain.User, snapshot []domain.Presence) []domain.User {
	byID := make(map[string]domain.Presence, len(snapshot))
	for _, p := range snapshot {
		byID[p.UserID] = p
	}

	out := make([]domain.User, len(users))
	copy(out, users)
	for i := range out {
		if p, ok := byID[out[i].ID]; ok {
			out[i].IsOnline = true
			if p.Status != "" {
				out[i].Status = p.Status
			}
		} else {
			out[i].IsOnline = false
		}
	}
	return out
}
