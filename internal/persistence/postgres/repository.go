// Package postgres provides pgx-backed persistence for user metrics, score
// audit rows, achievement unlocks, and the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/events"
	"example.com/gamification/internal/observability"
)

const (
	eventsTopic         = "gamification_events"
	eventsSchemaSubject = "gamification_events-value"
)

// Repository implements domain.Store on a pgx connection pool. Per-user
// atomicity comes from the single transaction in CommitScore plus the
// optimistic version column on user_metrics.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUserMetrics loads the metrics row, nil when the user is unseen.
func (r *Repository) GetUserMetrics(ctx context.Context, userID string) (*domain.UserMetrics, error) {
	const query = `SELECT payload, version FROM user_metrics WHERE user_id = $1`

	var payload []byte
	var version int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&payload, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var metrics domain.UserMetrics
	if err := json.Unmarshal(payload, &metrics); err != nil {
		return nil, fmt.Errorf("decode user_metrics payload: %w", err)
	}
	metrics.Version = version
	return &metrics, nil
}

// ListUnlockedKeys returns the achievement keys the user already holds.
func (r *Repository) ListUnlockedKeys(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT achievement_key FROM achievement_unlocks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out[key] = struct{}{}
	}
	return out, rows.Err()
}

// ListUnlocks pages through a user's unlock records, newest first.
func (r *Repository) ListUnlocks(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.UserAchievementUnlock, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT user_id, achievement_key, unlocked_at, trigger_value, reward_points
        FROM achievement_unlocks WHERE user_id = $1`
	args := []any{userID}
	if cursor != nil {
		query += ` AND (unlocked_at, achievement_key) < ($2, $3)`
		args = append(args, cursor.UnlockedAt, cursor.Key)
	}
	query += fmt.Sprintf(` ORDER BY unlocked_at DESC, achievement_key DESC LIMIT %d`, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	unlocks := make([]domain.UserAchievementUnlock, 0, limit)
	for rows.Next() {
		var u domain.UserAchievementUnlock
		if err := rows.Scan(&u.UserID, &u.AchievementKey, &u.UnlockedAt, &u.TriggerValue, &u.RewardPoints); err != nil {
			return nil, nil, err
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(unlocks) > limit {
		unlocks = unlocks[:limit]
		last := unlocks[len(unlocks)-1]
		next = &domain.Cursor{UnlockedAt: last.UnlockedAt, Key: last.AchievementKey}
	}
	return unlocks, next, nil
}

// FindScore returns the stored breakdown for an event id, nil when unseen.
func (r *Repository) FindScore(ctx context.Context, eventID string) (*domain.PointBreakdown, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT breakdown FROM score_events WHERE event_id = $1`, eventID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var breakdown domain.PointBreakdown
	if err := json.Unmarshal(payload, &breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown payload: %w", err)
	}
	return &breakdown, nil
}

// CommitScore persists the metrics update, the audit row, the unlocks, and
// the outbox events inside one transaction.
func (r *Repository) CommitScore(ctx context.Context, commit domain.ScoreCommit) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = r.saveMetrics(ctx, tx, commit); err != nil {
		return err
	}

	breakdownJSON, err := json.Marshal(commit.Breakdown)
	if err != nil {
		return err
	}
	scoredAt := commit.Event.StartedAt.UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO score_events (event_id, user_id, category, total, breakdown, scored_at)
         VALUES ($1,$2,$3,$4,$5,$6)`,
		commit.Event.ID, commit.Event.UserID, commit.Event.Category, commit.Breakdown.Total, breakdownJSON, scoredAt,
	)
	if err != nil {
		return err
	}

	for _, unlock := range commit.Unlocks {
		if err = r.insertUnlock(ctx, tx, unlock); err != nil {
			return err
		}
	}

	if err = r.insertOutboxEvents(ctx, tx, commit); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	observability.RecordScorePersisted(time.Now().UTC())
	return nil
}

// saveMetrics upserts the metrics row with an optimistic version check. A
// concurrent writer surfacing here means the per-user serialization upstream
// was violated; the commit fails closed rather than clobbering state.
func (r *Repository) saveMetrics(ctx context.Context, tx pgx.Tx, commit domain.ScoreCommit) error {
	payload, err := json.Marshal(commit.Metrics)
	if err != nil {
		return err
	}

	if commit.ExpectedVersion == 0 {
		tag, err := tx.Exec(ctx,
			`INSERT INTO user_metrics (user_id, payload, version) VALUES ($1,$2,1)
             ON CONFLICT (user_id) DO NOTHING`,
			commit.Event.UserID, payload,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: user %s already initialised", domain.ErrVersionConflict, commit.Event.UserID)
		}
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE user_metrics SET payload = $1, version = version + 1, updated_at = NOW()
         WHERE user_id = $2 AND version = $3`,
		payload, commit.Event.UserID, commit.ExpectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s at version %d", domain.ErrVersionConflict, commit.Event.UserID, commit.ExpectedVersion)
	}
	return nil
}

// insertUnlock inserts idempotently; a duplicate (user, key) pair is a no-op
// guarded by the primary key, never a second unlock.
func (r *Repository) insertUnlock(ctx context.Context, tx pgx.Tx, unlock domain.UserAchievementUnlock) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO achievement_unlocks (user_id, achievement_key, unlocked_at, trigger_value, reward_points)
         VALUES ($1,$2,$3,$4,$5)
         ON CONFLICT (user_id, achievement_key) DO NOTHING`,
		unlock.UserID, unlock.AchievementKey, unlock.UnlockedAt, unlock.TriggerValue, unlock.RewardPoints,
	)
	return err
}

func (r *Repository) insertOutboxEvents(ctx context.Context, tx pgx.Tx, commit domain.ScoreCommit) error {
	awarded := events.PointsAwarded{
		EventID:        commit.Event.ID,
		UserID:         commit.Event.UserID,
		Category:       commit.Event.Category,
		Points:         commit.Breakdown.Total,
		FormulaVersion: commit.Breakdown.FormulaVersion,
		AwardedAt:      commit.Event.StartedAt.UTC(),
	}
	if err := r.insertOutbox(ctx, tx, commit.Event.ID, "points.awarded", commit.Event.UserID, awarded); err != nil {
		return err
	}

	for _, unlock := range commit.Unlocks {
		payload := events.AchievementUnlocked{
			UserID:         unlock.UserID,
			AchievementKey: unlock.AchievementKey,
			RewardPoints:   unlock.RewardPoints,
			TriggerValue:   unlock.TriggerValue,
			UnlockedAt:     unlock.UnlockedAt,
		}
		if err := r.insertOutbox(ctx, tx, commit.Event.ID, "achievement.unlocked", unlock.UserID, payload); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType, partitionKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		"score_event", aggregateID, eventType, eventsTopic, eventsSchemaSubject, partitionKey, body,
	)
	return err
}
