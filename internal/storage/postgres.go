package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, guild_id, channel_id, author_id, content, timestamp,
			reply_to_id, reply_to_author_id, mentioned_user_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			reply_to_id = EXCLUDED.reply_to_id,
			reply_to_author_id = EXCLUDED.reply_to_author_id,
			mentioned_user_ids = EXCLUDED.mentioned_user_ids`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.GuildID, msg.ChannelID, msg.AuthorID, msg.Content, msg.Timestamp,
		msg.ReplyToID, msg.ReplyToAuthorID, pq.Array(msg.MentionedUserIDs))
	if err != nil {
		return fmt.Errorf("error saving message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT id, guild_id, channel_id, author_id, content, timestamp,
			reply_to_id, reply_to_author_id, mentioned_user_ids
		FROM messages
		WHERE id = $1`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying message: %v", err)
	}

	return msg, nil
}

func (s *PostgresStorage) GetPairMessages(ctx context.Context, guildID, userA, userB string, since time.Time, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, guild_id, channel_id, author_id, content, timestamp,
			reply_to_id, reply_to_author_id, mentioned_user_ids
		FROM messages
		WHERE guild_id = $1
			AND timestamp >= $2
			AND (author_id IN ($3, $4)
				OR $3 = ANY(mentioned_user_ids)
				OR $4 = ANY(mentioned_user_ids))
		ORDER BY timestamp DESC
		LIMIT $5`

	rows, err := s.db.QueryContext(ctx, query, guildID, since, userA, userB, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying pair messages: %v", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair messages: %v", err)
	}

	// Fetched newest-first to honor the cap; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *PostgresStorage) DeleteMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired messages: %v", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %v", err)
	}

	return deleted, nil
}

func (s *PostgresStorage) RecordInteraction(ctx context.Context, guildID, userA, userB, channelID string, at time.Time) (*models.Interaction, error) {
	a, b := models.NormalizePair(userA, userB)

	query := `
		INSERT INTO interactions (guild_id, user_a, user_b, last_interaction_at, interaction_count, context_chain)
		VALUES ($1, $2, $3, $4, 1, ARRAY[$5])
		ON CONFLICT (guild_id, user_a, user_b) DO UPDATE SET
			last_interaction_at = EXCLUDED.last_interaction_at,
			interaction_count = interactions.interaction_count + 1,
			context_chain = CASE
				WHEN $5 = ANY(interactions.context_chain) THEN interactions.context_chain
				ELSE array_append(interactions.context_chain, $5::text)
			END
		RETURNING guild_id, user_a, user_b, last_interaction_at, interaction_count, context_chain`

	row := s.db.QueryRowContext(ctx, query, guildID, a, b, at, channelID)

	interaction := &models.Interaction{}
	var chain pq.StringArray
	err := row.Scan(&interaction.GuildID, &interaction.UserA, &interaction.UserB,
		&interaction.LastInteractionAt, &interaction.InteractionCount, &chain)
	if err != nil {
		return nil, fmt.Errorf("error recording interaction: %v", err)
	}
	interaction.ContextChain = chain

	return interaction, nil
}

func (s *PostgresStorage) GetInteraction(ctx context.Context, guildID, userA, userB string) (*models.Interaction, error) {
	a, b := models.NormalizePair(userA, userB)

	query := `
		SELECT guild_id, user_a, user_b, last_interaction_at, interaction_count, context_chain
		FROM interactions
		WHERE guild_id = $1 AND user_a = $2 AND user_b = $3`

	interaction := &models.Interaction{}
	var chain pq.StringArray
	err := s.db.QueryRowContext(ctx, query, guildID, a, b).Scan(
		&interaction.GuildID, &interaction.UserA, &interaction.UserB,
		&interaction.LastInteractionAt, &interaction.InteractionCount, &chain)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying interaction: %v", err)
	}
	interaction.ContextChain = chain

	return interaction, nil
}

func (s *PostgresStorage) GetUserSignal(ctx context.Context, guildID, sourceUserID, targetUserID string) (*models.UserSignal, error) {
	query := `
		SELECT guild_id, source_user_id, target_user_id, total_interactions, concerning_count,
			issue_breakdown, severity_breakdown, avg_confidence, trend,
			first_seen, last_seen, last_aggregated
		FROM user_signals
		WHERE guild_id = $1 AND source_user_id = $2 AND target_user_id = $3`

	sig, err := scanUserSignal(s.db.QueryRowContext(ctx, query, guildID, sourceUserID, targetUserID), s.logger)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user signal: %v", err)
	}

	return sig, nil
}

func (s *PostgresStorage) SaveUserSignal(ctx context.Context, sig *models.UserSignal) error {
	issues, err := json.Marshal(sig.IssueBreakdown)
	if err != nil {
		return fmt.Errorf("error encoding issue breakdown: %v", err)
	}
	severities, err := json.Marshal(sig.SeverityBreakdown)
	if err != nil {
		return fmt.Errorf("error encoding severity breakdown: %v", err)
	}

	query := `
		INSERT INTO user_signals (guild_id, source_user_id, target_user_id, total_interactions,
			concerning_count, issue_breakdown, severity_breakdown, avg_confidence, trend,
			first_seen, last_seen, last_aggregated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (guild_id, source_user_id, target_user_id) DO UPDATE SET
			total_interactions = EXCLUDED.total_interactions,
			concerning_count = EXCLUDED.concerning_count,
			issue_breakdown = EXCLUDED.issue_breakdown,
			severity_breakdown = EXCLUDED.severity_breakdown,
			avg_confidence = EXCLUDED.avg_confidence,
			trend = EXCLUDED.trend,
			first_seen = EXCLUDED.first_seen,
			last_seen = EXCLUDED.last_seen,
			last_aggregated = EXCLUDED.last_aggregated`

	_, err = s.db.ExecContext(ctx, query,
		sig.GuildID, sig.SourceUserID, sig.TargetUserID, sig.TotalInteractions,
		sig.ConcerningCount, issues, severities, sig.AvgConfidence, sig.Trend,
		sig.FirstSeen, sig.LastSeen, sig.LastAggregated)
	if err != nil {
		return fmt.Errorf("error saving user signal: %v", err)
	}

	return nil
}

func (s *PostgresStorage) AddDailySnapshot(ctx context.Context, snap *models.DailySnapshot) error {
	query := `
		INSERT INTO daily_snapshots (guild_id, source_user_id, target_user_id, date,
			interaction_count, concerning_count, avg_severity, primary_issue_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (guild_id, source_user_id, target_user_id, date) DO UPDATE SET
			interaction_count = daily_snapshots.interaction_count + EXCLUDED.interaction_count,
			concerning_count = daily_snapshots.concerning_count + EXCLUDED.concerning_count,
			avg_severity = CASE
				WHEN daily_snapshots.concerning_count + EXCLUDED.concerning_count > 0 THEN
					(daily_snapshots.avg_severity * daily_snapshots.concerning_count +
						EXCLUDED.avg_severity * EXCLUDED.concerning_count) /
					(daily_snapshots.concerning_count + EXCLUDED.concerning_count)
				ELSE 0
			END,
			primary_issue_type = CASE
				WHEN EXCLUDED.primary_issue_type <> '' THEN EXCLUDED.primary_issue_type
				ELSE daily_snapshots.primary_issue_type
			END`

	_, err := s.db.ExecContext(ctx, query,
		snap.GuildID, snap.SourceUserID, snap.TargetUserID, snap.Date,
		snap.InteractionCount, snap.ConcerningCount, snap.AvgSeverity, snap.PrimaryIssueType)
	if err != nil {
		return fmt.Errorf("error saving daily snapshot: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetRecentSnapshots(ctx context.Context, guildID, sourceUserID, targetUserID string, limit int) ([]*models.DailySnapshot, error) {
	query := `
		SELECT guild_id, source_user_id, target_user_id, date,
			interaction_count, concerning_count, avg_severity, primary_issue_type
		FROM daily_snapshots
		WHERE guild_id = $1 AND source_user_id = $2 AND target_user_id = $3
		ORDER BY date DESC
		LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, guildID, sourceUserID, targetUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying snapshots: %v", err)
	}
	defer rows.Close()

	var snapshots []*models.DailySnapshot
	for rows.Next() {
		snap := &models.DailySnapshot{}
		err := rows.Scan(&snap.GuildID, &snap.SourceUserID, &snap.TargetUserID, &snap.Date,
			&snap.InteractionCount, &snap.ConcerningCount, &snap.AvgSeverity, &snap.PrimaryIssueType)
		if err != nil {
			return nil, fmt.Errorf("error scanning snapshot: %v", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %v", err)
	}

	return snapshots, nil
}

func (s *PostgresStorage) GetUserSignals(ctx context.Context, guildID, userID string) ([]*models.UserSignal, error) {
	query := `
		SELECT guild_id, source_user_id, target_user_id, total_interactions, concerning_count,
			issue_breakdown, severity_breakdown, avg_confidence, trend,
			first_seen, last_seen, last_aggregated
		FROM user_signals
		WHERE guild_id = $1
			AND (source_user_id = $2 OR target_user_id = $2)
			AND (concerning_count >= 3 OR trend = 1)
		ORDER BY concerning_count DESC, last_seen DESC`

	return s.queryUserSignals(ctx, query, guildID, userID)
}

func (s *PostgresStorage) GetTopConcerns(ctx context.Context, guildID string, minCount, limit int) ([]*models.UserSignal, error) {
	query := `
		SELECT guild_id, source_user_id, target_user_id, total_interactions, concerning_count,
			issue_breakdown, severity_breakdown, avg_confidence, trend,
			first_seen, last_seen, last_aggregated
		FROM user_signals
		WHERE guild_id = $1 AND concerning_count >= $2
		ORDER BY concerning_count DESC, last_seen DESC
		LIMIT $3`

	return s.queryUserSignals(ctx, query, guildID, minCount, limit)
}

func (s *PostgresStorage) queryUserSignals(ctx context.Context, query string, args ...any) ([]*models.UserSignal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying user signals: %v", err)
	}
	defer rows.Close()

	var signals []*models.UserSignal
	for rows.Next() {
		sig, err := scanUserSignal(rows, s.logger)
		if err != nil {
			return nil, fmt.Errorf("error scanning user signal: %v", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user signals: %v", err)
	}

	return signals, nil
}

func (s *PostgresStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (id, message_id, guild_id, channel_id, author_id, alerted_at, severity, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		alert.ID, alert.MessageID, alert.GuildID, alert.ChannelID, alert.AuthorID,
		alert.AlertedAt, alert.Severity, alert.Reason)
	if err != nil {
		return fmt.Errorf("error saving alert: %v", err)
	}

	return nil
}

func (s *PostgresStorage) AlertExistsForMessage(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM alerts WHERE message_id = $1)`, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking alert: %v", err)
	}
	return exists, nil
}

func (s *PostgresStorage) HasRecentAlert(ctx context.Context, authorID string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM alerts WHERE author_id = $1 AND alerted_at >= $2)`,
		authorID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking recent alert: %v", err)
	}
	return exists, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var mentions pq.StringArray
	err := row.Scan(&msg.ID, &msg.GuildID, &msg.ChannelID, &msg.AuthorID, &msg.Content,
		&msg.Timestamp, &msg.ReplyToID, &msg.ReplyToAuthorID, &mentions)
	if err != nil {
		return nil, err
	}
	msg.MentionedUserIDs = mentions
	return msg, nil
}

func scanUserSignal(row rowScanner, logger *zap.Logger) (*models.UserSignal, error) {
	sig := &models.UserSignal{}
	var issues, severities []byte
	err := row.Scan(&sig.GuildID, &sig.SourceUserID, &sig.TargetUserID, &sig.TotalInteractions,
		&sig.ConcerningCount, &issues, &severities, &sig.AvgConfidence, &sig.Trend,
		&sig.FirstSeen, &sig.LastSeen, &sig.LastAggregated)
	if err != nil {
		return nil, err
	}
	sig.IssueBreakdown = decodeCounts(issues, logger, "issue_breakdown")
	sig.SeverityBreakdown = decodeCounts(severities, logger, "severity_breakdown")
	return sig, nil
}

// decodeCounts tolerates a malformed breakdown column by substituting an
// empty map: these columns are only ever written by this system, so a bad
// row should not poison the whole read.
func decodeCounts(raw []byte, logger *zap.Logger, column string) map[string]int {
	counts := make(map[string]int)
	if len(raw) == 0 {
		return counts
	}
	if err := json.Unmarshal(raw, &counts); err != nil {
		logger.Warn("malformed breakdown column, substituting empty",
			zap.String("column", column),
			zap.Error(err))
		return make(map[string]int)
	}
	return counts
}
