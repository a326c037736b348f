// Package achievements evaluates and persists achievement unlocks.
package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	prommetrics "github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// StatsProvider supplies stats snapshots.
type StatsProvider interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*aggregator.Stats, error)
}

// AchievementRepository interface for unlock persistence.
type AchievementRepository interface {
	Award(ctx context.Context, userID uuid.UUID, ids []string, trigger string, at time.Time) ([]string, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error)
}

// Notifier announces notable unlocks.
type Notifier interface {
	SendAchievementUnlocked(ctx context.Context, username string, a progression.Achievement) error
}

// Entry is a catalog achievement with the user's unlock state.
type Entry struct {
	progression.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Service handles achievement evaluation and awarding.
type Service struct {
	stats    StatsProvider
	repo     AchievementRepository
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new achievement service.
func NewService(
	stats *aggregator.Service,
	repo *repository.AchievementRepository,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(stats, repo, notifier, log)
}

// NewServiceWithInterfaces creates a new achievement service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	stats StatsProvider,
	repo AchievementRepository,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		stats:    stats,
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Evaluate snapshots the user's stats and unlocks every achievement the
// trigger qualifies for. It returns only the ids inserted by this call.
func (s *Service) Evaluate(ctx context.Context, userID uuid.UUID, trigger string) ([]string, error) {
	stats, err := s.stats.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot stats: %w", err)
	}
	return s.EvaluateStats(ctx, stats, trigger)
}

// EvaluateStats unlocks achievements against an existing snapshot.
func (s *Service) EvaluateStats(ctx context.Context, stats *aggregator.Stats, trigger string) ([]string, error) {
	candidates := progression.EvaluateAchievements(trigger, stats.AchievementStats(), stats.Achievements)
	if len(candidates) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(candidates))
	byID := make(map[string]progression.Achievement, len(candidates))
	for _, a := range candidates {
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}

	userID := stats.Profile.ID
	inserted, err := s.repo.Award(ctx, userID, ids, trigger, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to award achievements: %w", err)
	}

	for _, id := range inserted {
		a := byID[id]
		prommetrics.RecordAchievementUnlocked(a.ID, a.Rarity)

		s.log.Info().
			Str("user_id", userID.String()).
			Str("achievement", a.ID).
			Str("rarity", a.Rarity).
			Str("trigger", trigger).
			Msg("Achievement unlocked")

		if s.notifier != nil && a.Rarity != models.RarityCommon {
			if err := s.notifier.SendAchievementUnlocked(ctx, stats.Profile.Username, a); err != nil {
				s.log.Warn().Err(err).Str("achievement", a.ID).Msg("Failed to announce achievement")
			}
		}
	}

	stats.Achievements = append(stats.Achievements, inserted...)
	return inserted, nil
}

// List returns the full catalog with the user's unlock state.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlocked := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		unlocked[row.AchievementID] = row.UnlockedAt
	}

	catalog := progression.Catalog()
	entries := make([]Entry, 0, len(catalog))
	for _, a := range catalog {
		entry := Entry{Achievement: a}
		if at, ok := unlocked[a.ID]; ok {
			at := at
			entry.Unlocked = true
			entry.UnlockedAt = &at
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
