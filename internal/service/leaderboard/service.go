// Package leaderboard provides ranking services over cached profile progression.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Ranking metrics.
const (
	MetricEarnings      = "total_earnings"
	MetricCoins         = "total_coins"
	MetricCurrentStreak = "current_streak"
	MetricLongestStreak = "longest_streak"
)

// DefaultLimit and MaxLimit bound the number of returned entries.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrInvalidMetric is returned for an unknown ranking metric.
var ErrInvalidMetric = errors.New("invalid leaderboard metric")

// ProfileRepository interface for ranking queries.
type ProfileRepository interface {
	TopBy(ctx context.Context, metric string, limit int) ([]models.Profile, error)
}

// AchievementRepository interface for achievement counts.
type AchievementRepository interface {
	CountByUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	Rank             int       `json:"rank"`
	UserID           uuid.UUID `json:"user_id"`
	Username         string    `json:"username"`
	Name             string    `json:"name,omitempty"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	Level            int       `json:"level"`
	LevelName        string    `json:"level_name"`
	LevelEmoji       string    `json:"level_emoji"`
	TotalEarnings    float64   `json:"total_earnings"`
	TotalCoins       int       `json:"total_coins"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	AchievementCount int       `json:"achievement_count"`
}

// Service handles leaderboard generation.
type Service struct {
	profileRepo     ProfileRepository
	achievementRepo AchievementRepository
	log             *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(
	profileRepo *repository.ProfileRepository,
	achievementRepo *repository.AchievementRepository,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(profileRepo, achievementRepo, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	profileRepo ProfileRepository,
	achievementRepo AchievementRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		profileRepo:     profileRepo,
		achievementRepo: achievementRepo,
		log:             log,
	}
}

// ValidMetric reports whether metric can be ranked on.
func ValidMetric(metric string) bool {
	switch metric {
	case MetricEarnings, MetricCoins, MetricCurrentStreak, MetricLongestStreak:
		return true
	}
	return false
}

// Get returns the top profiles ranked by metric. An empty metric ranks by
// earnings; limit is clamped to [1, MaxLimit] with DefaultLimit for zero.
func (s *Service) Get(ctx context.Context, metric string, limit int) ([]Entry, error) {
	if metric == "" {
		metric = MetricEarnings
	}
	if !ValidMetric(metric) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetric, metric)
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	profiles, err := s.profileRepo.TopBy(ctx, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank profiles: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}

	counts, err := s.achievementRepo.CountByUsers(ctx, ids)
	if err != nil {
		// counts are decoration; rank without them
		s.log.Warn().Err(err).Msg("Failed to count achievements for leaderboard")
		counts = map[uuid.UUID]int{}
	}

	entries := make([]Entry, 0, len(profiles))
	for i, p := range profiles {
		level := progression.LevelFromEarnings(p.TotalEarnings)
		entries = append(entries, Entry{
			Rank:             i + 1,
			UserID:           p.ID,
			Username:         p.Username,
			Name:             p.Name,
			AvatarURL:        p.AvatarURL,
			Level:            level.Number,
			LevelName:        level.Name,
			LevelEmoji:       level.Emoji,
			TotalEarnings:    p.TotalEarnings,
			TotalCoins:       p.TotalCoins,
			CurrentStreak:    p.CurrentStreak,
			LongestStreak:    p.LongestStreak,
			AchievementCount: counts[p.ID],
		})
	}

	return entries, nil
}
