package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/models"
	"github.com/RikaiDev/mimamori/internal/signal"
)

// maybeNotify DMs the author a private nudge about their message, gated by
// per-message dedup and a per-author cooldown.
func (b *Bot) maybeNotify(ctx context.Context, msg *models.Message, targetUserID string, verdict *models.Verdict, res *signal.Result) {
	exists, err := b.storage.AlertExistsForMessage(ctx, msg.ID)
	if err != nil {
		b.logger.Error("failed to check alert dedup", zap.Error(err), zap.String("message_id", msg.ID))
		return
	}
	if exists {
		return
	}

	cooldown := time.Duration(b.monitor.CooldownMinutes) * time.Minute
	recent, err := b.storage.HasRecentAlert(ctx, msg.AuthorID, time.Now().Add(-cooldown))
	if err != nil {
		b.logger.Error("failed to check alert cooldown", zap.Error(err), zap.String("author_id", msg.AuthorID))
		return
	}
	if recent {
		b.logger.Debug("author in cooldown, skipping alert", zap.String("author_id", msg.AuthorID))
		return
	}

	if err := b.sendDM(msg.AuthorID, buildNotification(b.names.ChannelName(msg.ChannelID), msg.ChannelID, verdict, res)); err != nil {
		b.logger.Error("failed to deliver alert",
			zap.Error(err),
			zap.String("author_id", msg.AuthorID),
			zap.String("message_id", msg.ID))
		return
	}

	alert := &models.Alert{
		ID:        uuid.New().String(),
		MessageID: msg.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
		AlertedAt: time.Now(),
		Severity:  verdict.Severity,
		Reason:    verdict.Reason,
	}
	if err := b.storage.SaveAlert(ctx, alert); err != nil {
		b.logger.Error("failed to save alert", zap.Error(err), zap.String("message_id", msg.ID))
	}

	b.logger.Info("alert delivered",
		zap.String("author_id", msg.AuthorID),
		zap.String("target_id", targetUserID),
		zap.String("severity", verdict.Severity),
		zap.String("issue_type", verdict.IssueType))
}

func buildNotification(channelLabel, channelID string, verdict *models.Verdict, res *signal.Result) string {
	if channelLabel == "" {
		channelLabel = channelID
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi — a recent message of yours in #%s came across as it might hurt someone (%s, severity %s).\n\n",
		channelLabel, verdict.IssueType, verdict.Severity)
	if verdict.Suggestion != "" {
		fmt.Fprintf(&sb, "A gentler way to say it: %s\n\n", verdict.Suggestion)
	}
	if res.TrendWorsened {
		sb.WriteString("This kind of exchange has been happening more often lately, which is why we're reaching out.\n")
	}
	sb.WriteString("This note is only visible to you.")

	return sb.String()
}

func (b *Bot) sendDM(userID, content string) error {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	if _, err := b.session.ChannelMessageSend(channel.ID, content); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}
