package conversation

import (
	"fmt"
	"strings"

	"github.com/RikaiDev/mimamori/internal/models"
)

// NameResolver maps IDs to display labels for rendering. Implementations
// return "" when they cannot resolve an ID; rendering then falls back to the
// raw ID.
type NameResolver interface {
	UserName(userID string) string
	ChannelName(channelID string) string
}

// StaticResolver is a map-backed NameResolver, used by tests and offline
// tooling.
type StaticResolver struct {
	Users    map[string]string
	Channels map[string]string
}

func (r *StaticResolver) UserName(userID string) string {
	return r.Users[userID]
}

func (r *StaticResolver) ChannelName(channelID string) string {
	return r.Channels[channelID]
}

const timestampLayout = "2006-01-02 15:04"

// Render produces the human-readable conversation transcript sent to the
// analyzer: context messages in chronological order, then the trigger in its
// own demarcated section.
func (c *Chain) Render(resolver NameResolver) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Conversation between %s and involved users over the last %d minutes:\n\n",
		userLabel(resolver, c.Trigger.AuthorID), c.TimeSpanMinutes)

	if len(c.Context) == 0 {
		sb.WriteString("(no earlier messages in the window)\n")
	}
	for _, msg := range c.Context {
		writeMessageLine(&sb, resolver, msg)
	}

	sb.WriteString("\n--- Message being analyzed ---\n")
	writeMessageLine(&sb, resolver, c.Trigger)

	return sb.String()
}

func writeMessageLine(sb *strings.Builder, resolver NameResolver, msg *models.Message) {
	fmt.Fprintf(sb, "[%s] #%s %s: %s\n",
		msg.Timestamp.UTC().Format(timestampLayout),
		channelLabel(resolver, msg.ChannelID),
		userLabel(resolver, msg.AuthorID),
		msg.Content)

	if msg.ReplyToAuthorID != "" {
		fmt.Fprintf(sb, "    (reply to %s)\n", userLabel(resolver, msg.ReplyToAuthorID))
	}
	if len(msg.MentionedUserIDs) > 0 {
		labels := make([]string, len(msg.MentionedUserIDs))
		for i, id := range msg.MentionedUserIDs {
			labels[i] = userLabel(resolver, id)
		}
		fmt.Fprintf(sb, "    (mentions: %s)\n", strings.Join(labels, ", "))
	}
}

func userLabel(resolver NameResolver, userID string) string {
	if name := resolver.UserName(userID); name != "" {
		return name
	}
	return userID
}

func channelLabel(resolver NameResolver, channelID string) string {
	if name := resolver.ChannelName(channelID); name != "" {
		return name
	}
	return channelID
}
