package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RikaiDev/mimamori/internal/models"
	"github.com/RikaiDev/mimamori/internal/signal"
)

func TestBuildNotification(t *testing.T) {
	verdict := &models.Verdict{
		IsConcerning: true,
		Severity:     models.SeverityMedium,
		IssueType:    models.IssueBullying,
		Suggestion:   "Could you walk me through what went wrong?",
	}

	out := buildNotification("general", "c1", verdict, &signal.Result{})
	assert.Contains(t, out, "#general")
	assert.Contains(t, out, "bullying")
	assert.Contains(t, out, "severity medium")
	assert.Contains(t, out, "Could you walk me through what went wrong?")
	assert.NotContains(t, out, "more often lately")

	out = buildNotification("", "c1", verdict, &signal.Result{TrendWorsened: true})
	// Unresolved channel label falls back to the raw ID.
	assert.Contains(t, out, "#c1")
	assert.Contains(t, out, "more often lately")
}

func TestNameCache(t *testing.T) {
	c := newNameCache()
	assert.Empty(t, c.UserName("u1"))

	c.SetUser("u1", "alice")
	c.SetChannel("c1", "general")
	assert.Equal(t, "alice", c.UserName("u1"))
	assert.Equal(t, "general", c.ChannelName("c1"))

	// Later sightings refresh the label.
	c.SetUser("u1", "alice2")
	assert.Equal(t, "alice2", c.UserName("u1"))
}
