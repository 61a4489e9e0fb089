package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/events"
	"example.com/gamification/internal/observability"
)

const eventTypeActivityLogged = "activity.logged"

// Scorer is the slice of the scoring service the handler depends on.
type Scorer interface {
	ScoreEvent(ctx context.Context, input domain.ScoreEventInput) (*domain.ScoreResult, error)
}

// ScoringHandler decodes activity.logged payloads and runs them through the
// scoring pipeline. Unknown event types are acknowledged without action so the
// topic can carry future message kinds.
type ScoringHandler struct {
	scorer Scorer
	logger *zap.Logger
}

// NewScoringHandler constructs a handler around the given scorer.
func NewScoringHandler(scorer Scorer, logger *zap.Logger) *ScoringHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringHandler{scorer: scorer, logger: logger.Named("scoring")}
}

// Handle scores one consumed activity event.
func (h *ScoringHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != eventTypeActivityLogged {
		h.logger.Debug("skipping event type", zap.String("event_type", msg.EventType))
		return nil
	}

	var logged events.ActivityLogged
	if err := json.Unmarshal(msg.Payload, &logged); err != nil {
		return fmt.Errorf("unmarshal activity.logged: %w", err)
	}

	result, err := h.scorer.ScoreEvent(ctx, domain.ScoreEventInput{
		EventID:             logged.EventID,
		UserID:              logged.UserID,
		Category:            logged.Category,
		Measurements:        logged.Measurements,
		StartedAt:           logged.StartedAt,
		EndedAt:             logged.EndedAt,
		Source:              domain.EventSource(logged.Source),
		ChallengeMultiplier: logged.ChallengeMultiplier,
	})
	if err != nil {
		if domain.IsValidation(err) || errors.Is(err, domain.ErrUnknownCategory) {
			// Invalid payloads never become valid; drop them instead of
			// blocking the partition.
			h.logger.Warn("dropping invalid activity event",
				zap.String("event_id", logged.EventID),
				zap.String("user_id", logged.UserID),
				zap.Error(err),
			)
			observability.RecordScored(logged.Category, "invalid")
			return nil
		}
		observability.RecordScored(logged.Category, "error")
		return err
	}

	if result.Replay {
		h.logger.Info("replayed event acknowledged",
			zap.String("event_id", result.EventID),
			zap.String("user_id", logged.UserID),
		)
		return nil
	}

	if result.Report.RecordClaimUnconfirmed {
		h.logger.Warn("claimed personal record not confirmed",
			zap.String("event_id", result.EventID),
			zap.String("user_id", logged.UserID),
			zap.String("category", logged.Category),
		)
	}

	observability.RecordScored(logged.Category, "ok")
	observability.RecordPoints(logged.Category, result.Breakdown.Total)
	for _, unlock := range result.Unlocks {
		observability.RecordUnlock(unlock.AchievementKey)
	}

	h.logger.Info("event scored",
		zap.String("event_id", result.EventID),
		zap.String("user_id", logged.UserID),
		zap.String("category", logged.Category),
		zap.Int64("points", result.Breakdown.Total),
		zap.Int("unlocks", len(result.Unlocks)),
	)
	return nil
}
