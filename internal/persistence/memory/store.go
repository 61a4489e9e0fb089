// Package memory provides an in-memory Store for unit tests and local
// development. It mirrors the Postgres repository's semantics, including the
// optimistic version check and idempotent unlock inserts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"example.com/gamification/internal/domain"
)

// Store implements domain.Store with mutex-guarded maps.
type Store struct {
	mu       sync.RWMutex
	metrics  map[string]domain.UserMetrics
	scores   map[string]domain.PointBreakdown
	unlocks  map[string]map[string]domain.UserAchievementUnlock
	failNext error
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		metrics: make(map[string]domain.UserMetrics),
		scores:  make(map[string]domain.PointBreakdown),
		unlocks: make(map[string]map[string]domain.UserAchievementUnlock),
	}
}

// GetUserMetrics returns a deep copy of the stored metrics, or nil when the
// user has never been seen.
func (s *Store) GetUserMetrics(ctx context.Context, userID string) (*domain.UserMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[userID]
	if !ok {
		return nil, nil
	}
	clone := m.Clone()
	return &clone, nil
}

// ListUnlockedKeys returns the set of achievement keys the user holds.
func (s *Store) ListUnlockedKeys(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.unlocks[userID]))
	for key := range s.unlocks[userID] {
		out[key] = struct{}{}
	}
	return out, nil
}

// ListUnlocks returns the user's unlock records newest first, applying the
// same keyset pagination as the Postgres repository.
func (s *Store) ListUnlocks(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.UserAchievementUnlock, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.UserAchievementUnlock, 0, len(s.unlocks[userID]))
	for _, unlock := range s.unlocks[userID] {
		all = append(all, unlock)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UnlockedAt.Equal(all[j].UnlockedAt) {
			return all[i].UnlockedAt.After(all[j].UnlockedAt)
		}
		return all[i].AchievementKey > all[j].AchievementKey
	})

	start := 0
	if cursor != nil {
		for i, unlock := range all {
			if unlock.UnlockedAt.Before(cursor.UnlockedAt) ||
				(unlock.UnlockedAt.Equal(cursor.UnlockedAt) && unlock.AchievementKey < cursor.Key) {
				start = i
				break
			}
			start = len(all)
		}
	}

	page := all[start:]
	var next *domain.Cursor
	if limit > 0 && len(page) > limit {
		page = page[:limit]
		last := page[len(page)-1]
		next = &domain.Cursor{UnlockedAt: last.UnlockedAt, Key: last.AchievementKey}
	}
	return page, next, nil
}

// FindScore returns the stored breakdown for an event id, nil when unseen.
func (s *Store) FindScore(ctx context.Context, eventID string) (*domain.PointBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bd, ok := s.scores[eventID]
	if !ok {
		return nil, nil
	}
	return &bd, nil
}

// CommitScore applies one scoring pass atomically.
func (s *Store) CommitScore(ctx context.Context, commit domain.ScoreCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	if existing, ok := s.metrics[commit.Event.UserID]; ok && existing.Version != commit.ExpectedVersion {
		return fmt.Errorf("%w: have %d, expected %d", domain.ErrVersionConflict, existing.Version, commit.ExpectedVersion)
	}

	updated := commit.Metrics.Clone()
	updated.Version = commit.ExpectedVersion + 1
	s.metrics[commit.Event.UserID] = updated
	s.scores[commit.Event.ID] = commit.Breakdown

	for _, unlock := range commit.Unlocks {
		byKey, ok := s.unlocks[unlock.UserID]
		if !ok {
			byKey = make(map[string]domain.UserAchievementUnlock)
			s.unlocks[unlock.UserID] = byKey
		}
		// Idempotent insert: an existing row wins.
		if _, exists := byKey[unlock.AchievementKey]; !exists {
			byKey[unlock.AchievementKey] = unlock
		}
	}
	return nil
}

// FailNextCommit makes the next CommitScore return err, for failure-path tests.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}
