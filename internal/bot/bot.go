package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/analyzer"
	"github.com/RikaiDev/mimamori/internal/conversation"
	"github.com/RikaiDev/mimamori/internal/models"
	"github.com/RikaiDev/mimamori/internal/signal"
	"github.com/RikaiDev/mimamori/internal/storage"
	"github.com/RikaiDev/mimamori/internal/trigger"
	"github.com/RikaiDev/mimamori/pkg/config"
)

type Bot struct {
	session    *discordgo.Session
	storage    storage.Storage
	trigger    *trigger.Engine
	builder    *conversation.Builder
	analyzer   analyzer.Analyzer
	aggregator *signal.Aggregator
	monitor    config.MonitorConfig
	logger     *zap.Logger
	names      *nameCache
	stopSweep  chan struct{}
	sweepDone  sync.WaitGroup
}

func New(token string, store storage.Storage, engine *trigger.Engine, builder *conversation.Builder,
	az analyzer.Analyzer, aggregator *signal.Aggregator, monitor config.MonitorConfig, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{
		session:    session,
		storage:    store,
		trigger:    engine,
		builder:    builder,
		analyzer:   az,
		aggregator: aggregator,
		monitor:    monitor,
		logger:     logger,
		names:      newNameCache(),
		stopSweep:  make(chan struct{}),
	}
	session.AddHandler(b.onMessageCreate)

	return b, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	b.sweepDone.Add(1)
	go b.sweepLoop()

	b.logger.Info("bot started",
		zap.Int("window_hours", b.monitor.WindowHours),
		zap.Int("retention_hours", b.monitor.RetentionHours))
	return nil
}

func (b *Bot) Stop() error {
	close(b.stopSweep)
	b.sweepDone.Wait()
	return b.session.Close()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	go b.handleMessage(m)
}

func (b *Bot) handleMessage(m *discordgo.MessageCreate) {
	ctx := context.Background()

	b.rememberNames(m)

	msg := b.toModel(ctx, m)
	if err := b.storage.SaveMessage(ctx, msg); err != nil {
		b.logger.Error("failed to save message",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.String("guild_id", msg.GuildID))
		return
	}

	b.recordInteractions(ctx, msg)

	result := b.trigger.Classify(msg.Content, msg.AuthorID, msg.MentionedUserIDs, msg.ReplyToAuthorID)
	if !result.ShouldAnalyze {
		return
	}

	b.logger.Info("message flagged for analysis",
		zap.String("message_id", msg.ID),
		zap.String("reason", result.Reason),
		zap.String("author_id", msg.AuthorID),
		zap.String("target_id", result.TargetUserID))

	b.analyze(ctx, msg, result)
}

func (b *Bot) analyze(ctx context.Context, msg *models.Message, result trigger.Result) {
	chain, err := b.builder.Build(ctx, msg.GuildID, msg.ID, msg.AuthorID, result.TargetUserID)
	if err != nil {
		b.logger.Error("failed to build context", zap.Error(err), zap.String("message_id", msg.ID))
		return
	}
	if chain == nil {
		b.logger.Debug("no context available", zap.String("message_id", msg.ID))
		return
	}

	summary := ""
	if prior, err := b.aggregator.PairSignal(ctx, msg.GuildID, msg.AuthorID, result.TargetUserID); err == nil && prior != nil {
		summary = signal.Summary(prior)
	}

	targetLabel := ""
	if result.TargetUserID != msg.AuthorID {
		targetLabel = b.userLabel(result.TargetUserID)
	}

	verdict, err := b.analyzer.Analyze(ctx, &analyzer.Request{
		FormattedContext:  chain.Render(b.names),
		RawMessageContent: msg.Content,
		AuthorLabel:       b.userLabel(msg.AuthorID),
		TargetLabel:       targetLabel,
		LanguageHint:      trigger.DetectLanguage(msg.Content),
		SignalSummary:     summary,
	})
	if err != nil {
		b.logger.Warn("analyzer unavailable, using default verdict",
			zap.Error(err),
			zap.String("message_id", msg.ID))
		verdict = models.DefaultVerdict()
	}

	res, err := b.aggregator.RecordVerdict(ctx, msg.GuildID, msg.AuthorID, result.TargetUserID, verdict)
	if err != nil {
		b.logger.Error("failed to record verdict", zap.Error(err), zap.String("message_id", msg.ID))
		return
	}

	if verdict.IsConcerning && (res.IsNewConcernLevel || res.TrendWorsened) {
		b.maybeNotify(ctx, msg, result.TargetUserID, verdict, res)
	}
}

// recordInteractions bumps the pair counter for the replied-to author and
// every mentioned user.
func (b *Bot) recordInteractions(ctx context.Context, msg *models.Message) {
	counterparts := msg.MentionedUserIDs
	if msg.ReplyToAuthorID != "" {
		counterparts = append([]string{msg.ReplyToAuthorID}, counterparts...)
	}
	for _, userID := range models.DedupeUsers(counterparts...) {
		if userID == msg.AuthorID {
			continue
		}
		if _, err := b.storage.RecordInteraction(ctx, msg.GuildID, msg.AuthorID, userID, msg.ChannelID, msg.Timestamp); err != nil {
			b.logger.Error("failed to record interaction",
				zap.Error(err),
				zap.String("guild_id", msg.GuildID),
				zap.String("user_id", userID))
		}
	}
}

func (b *Bot) toModel(ctx context.Context, m *discordgo.MessageCreate) *models.Message {
	mentions := make([]string, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentions = append(mentions, u.ID)
	}

	msg := &models.Message{
		ID:               m.ID,
		GuildID:          m.GuildID,
		ChannelID:        m.ChannelID,
		AuthorID:         m.Author.ID,
		Content:          m.Content,
		Timestamp:        m.Timestamp,
		MentionedUserIDs: mentions,
	}

	if m.MessageReference != nil && m.MessageReference.MessageID != "" {
		msg.ReplyToID = m.MessageReference.MessageID
		if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
			msg.ReplyToAuthorID = m.ReferencedMessage.Author.ID
		} else if stored, err := b.storage.GetMessage(ctx, msg.ReplyToID); err == nil && stored != nil {
			msg.ReplyToAuthorID = stored.AuthorID
		}
	}

	return msg
}

func (b *Bot) rememberNames(m *discordgo.MessageCreate) {
	b.names.SetUser(m.Author.ID, m.Author.Username)
	for _, u := range m.Mentions {
		b.names.SetUser(u.ID, u.Username)
	}
	if b.names.ChannelName(m.ChannelID) == "" {
		if ch, err := b.session.Channel(m.ChannelID); err == nil {
			b.names.SetChannel(m.ChannelID, ch.Name)
		}
	}
}

func (b *Bot) userLabel(userID string) string {
	if name := b.names.UserName(userID); name != "" {
		return name
	}
	return userID
}

// sweepLoop prunes messages past the retention horizon. It runs off the
// request path; expired rows are by construction outside any live context
// window, so deleting concurrently with reads is safe.
func (b *Bot) sweepLoop() {
	defer b.sweepDone.Done()

	interval := time.Duration(b.monitor.SweepIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopSweep:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(b.monitor.RetentionHours) * time.Hour)
			deleted, err := b.storage.DeleteMessagesOlderThan(context.Background(), cutoff)
			if err != nil {
				b.logger.Error("retention sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				b.logger.Info("retention sweep removed messages", zap.Int64("deleted", deleted))
			}
		}
	}
}

// nameCache is the explicit display-name lookup passed into rendering, fed
// by the ingestion path.
type nameCache struct {
	mu       sync.RWMutex
	users    map[string]string
	channels map[string]string
}

func newNameCache() *nameCache {
	return &nameCache{
		users:    make(map[string]string),
		channels: make(map[string]string),
	}
}

func (c *nameCache) SetUser(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[id] = name
}

func (c *nameCache) SetChannel(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[id] = name
}

func (c *nameCache) UserName(userID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[userID]
}

func (c *nameCache) ChannelName(channelID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channelID]
}
