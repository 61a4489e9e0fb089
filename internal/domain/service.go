package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Calculator turns one event plus the user's current metrics into a breakdown.
// Implementations must be pure: identical inputs yield identical breakdowns.
type Calculator interface {
	Calculate(event ActivityEvent, metrics UserMetrics, challengeMultiplier float64) (PointBreakdown, error)
}

// MetricsTracker applies one scored event to the user's running state.
type MetricsTracker interface {
	Apply(event ActivityEvent, breakdown PointBreakdown, metrics UserMetrics) (UserMetrics, ApplyReport, error)
}

// UnlockEvaluator tests the achievement catalog against updated metrics.
type UnlockEvaluator interface {
	Evaluate(metrics UserMetrics, report ApplyReport, event ActivityEvent, breakdown PointBreakdown, already map[string]struct{}) []UserAchievementUnlock
}

// Store captures the persistence operations scoring depends on. Per-user
// atomicity of CommitScore is the store's responsibility. GetUserMetrics and
// FindScore return (nil, nil) when no row exists.
type Store interface {
	GetUserMetrics(ctx context.Context, userID string) (*UserMetrics, error)
	ListUnlockedKeys(ctx context.Context, userID string) (map[string]struct{}, error)
	FindScore(ctx context.Context, eventID string) (*PointBreakdown, error)
	CommitScore(ctx context.Context, commit ScoreCommit) error
}

// ScoreCommit bundles everything one scoring pass persists atomically.
type ScoreCommit struct {
	Event           ActivityEvent
	Metrics         UserMetrics
	ExpectedVersion int64
	Breakdown       PointBreakdown
	Unlocks         []UserAchievementUnlock
}

// ScoreEventInput is the payload accepted from the API and consumer surfaces.
type ScoreEventInput struct {
	EventID             string
	UserID              string
	Category            string
	Measurements        Measurements
	StartedAt           time.Time
	EndedAt             time.Time
	Source              EventSource
	ChallengeMultiplier float64
}

// ScoreResult is the single response object returned to the caller.
type ScoreResult struct {
	EventID   string
	Breakdown PointBreakdown
	Report    ApplyReport
	Unlocks   []UserAchievementUnlock
	Metrics   UserMetrics
	Replay    bool
}

// Service orchestrates the scoring pipeline: validate, calculate, apply,
// evaluate, commit. The write path is serialized per user.
type Service struct {
	store          Store
	calc           Calculator
	tracker        MetricsTracker
	evaluator      UnlockEvaluator
	locks          *UserLocks
	graceAllowance int
	now            func() time.Time
}

// ServiceOption configures optional Service behaviour.
type ServiceOption func(*Service)

// WithClock overrides the wall clock, used for unlock timestamps only.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithGraceAllowance sets how many grace tokens a brand-new user starts with.
func WithGraceAllowance(n int) ServiceOption {
	return func(s *Service) { s.graceAllowance = n }
}

// NewService constructs a Service.
func NewService(store Store, calc Calculator, tracker MetricsTracker, evaluator UnlockEvaluator, opts ...ServiceOption) *Service {
	s := &Service{
		store:          store,
		calc:           calc,
		tracker:        tracker,
		evaluator:      evaluator,
		locks:          NewUserLocks(),
		graceAllowance: 1,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreEvent processes one activity event end to end. A failed calculation
// yields zero points and no state change; replayed event ids return the
// stored breakdown without re-applying anything.
func (s *Service) ScoreEvent(ctx context.Context, input ScoreEventInput) (*ScoreResult, error) {
	event := ActivityEvent{
		ID:           input.EventID,
		UserID:       input.UserID,
		Category:     input.Category,
		Measurements: input.Measurements,
		StartedAt:    input.StartedAt,
		EndedAt:      input.EndedAt,
		Source:       input.Source,
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Source == "" {
		event.Source = SourceManual
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(event.UserID)
	defer unlock()

	if stored, err := s.store.FindScore(ctx, event.ID); err != nil {
		return nil, fmt.Errorf("replay lookup: %w", err)
	} else if stored != nil {
		return &ScoreResult{EventID: event.ID, Breakdown: *stored, Replay: true}, nil
	}

	metrics, err := s.store.GetUserMetrics(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	if metrics == nil {
		fresh := NewUserMetrics(event.UserID, s.graceAllowance, s.now())
		metrics = &fresh
	}

	breakdown, err := s.calc.Calculate(event, *metrics, input.ChallengeMultiplier)
	if err != nil {
		return nil, err
	}

	updated, report, err := s.tracker.Apply(event, breakdown, *metrics)
	if err != nil {
		return nil, err
	}

	already, err := s.store.ListUnlockedKeys(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("load unlocked keys: %w", err)
	}

	unlocks := s.evaluator.Evaluate(updated, report, event, breakdown, already)
	for i := range unlocks {
		unlocks[i].UserID = event.UserID
		unlocks[i].UnlockedAt = s.now().UTC()
		// Reward points land on the lifetime totals at commit time. Thresholds
		// crossed by the reward itself are recognised on the next event.
		updated.LifetimePoints += unlocks[i].RewardPoints
		updated.WeeklyPoints += unlocks[i].RewardPoints
		updated.MonthlyPoints += unlocks[i].RewardPoints
	}

	commit := ScoreCommit{
		Event:           event,
		Metrics:         updated,
		ExpectedVersion: metrics.Version,
		Breakdown:       breakdown,
		Unlocks:         unlocks,
	}
	if err := s.store.CommitScore(ctx, commit); err != nil {
		return nil, fmt.Errorf("commit score: %w", err)
	}

	return &ScoreResult{
		EventID:   event.ID,
		Breakdown: breakdown,
		Report:    report,
		Unlocks:   unlocks,
		Metrics:   updated,
	}, nil
}

// UserMetrics returns the current metrics snapshot for a user.
func (s *Service) UserMetrics(ctx context.Context, userID string) (*UserMetrics, error) {
	return s.store.GetUserMetrics(ctx, userID)
}
