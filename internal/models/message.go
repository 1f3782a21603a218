package models

import (
	"sort"
	"time"
)

// Message is a chat message as ingested from the platform. IDs are
// platform-assigned snowflakes; re-ingesting the same ID overwrites in place.
type Message struct {
	ID               string    `json:"id"`
	GuildID          string    `json:"guild_id"`
	ChannelID        string    `json:"channel_id"`
	AuthorID         string    `json:"author_id"`
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	ReplyToID        string    `json:"reply_to_id,omitempty"`
	ReplyToAuthorID  string    `json:"reply_to_author_id,omitempty"`
	MentionedUserIDs []string  `json:"mentioned_user_ids"`
}

// Mentions reports whether userID appears in the message's mention list.
func (m *Message) Mentions(userID string) bool {
	for _, id := range m.MentionedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Interaction counts how often two users have interacted (mention or reply)
// inside a guild. The pair is order-normalized: (A,B) and (B,A) share a row.
type Interaction struct {
	GuildID           string    `json:"guild_id"`
	UserA             string    `json:"user_a"`
	UserB             string    `json:"user_b"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	InteractionCount  int       `json:"interaction_count"`
	ContextChain      []string  `json:"context_chain"`
}

// NormalizePair sorts two user IDs into the canonical storage order.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// AddChannel appends a channel to the context chain if it is not already
// present, keeping the chain bounded.
func (i *Interaction) AddChannel(channelID string, max int) {
	for _, c := range i.ContextChain {
		if c == channelID {
			return
		}
	}
	i.ContextChain = append(i.ContextChain, channelID)
	if max > 0 && len(i.ContextChain) > max {
		i.ContextChain = i.ContextChain[len(i.ContextChain)-max:]
	}
}

// DedupeUsers returns the sorted, deduplicated union of the given user IDs,
// dropping empty entries.
func DedupeUsers(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
