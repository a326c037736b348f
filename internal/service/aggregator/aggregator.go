// Package aggregator assembles per-user progression snapshots and keeps the
// cached progression fields on profiles in sync with the ledger.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
)

// ErrProfileNotFound is returned when the user has no profile yet.
var ErrProfileNotFound = errors.New("profile not found")

// HeatmapDays is the window of deep work minutes included in a snapshot.
const HeatmapDays = 365

// Notifier announces level changes.
type Notifier interface {
	SendLevelUp(ctx context.Context, username string, from, to progression.Level, earnings float64) error
}

// Stats is a consistent snapshot of one user's progression.
type Stats struct {
	Profile        *models.Profile       `json:"profile"`
	TotalEarnings  float64               `json:"total_earnings"`
	Level          progression.Level     `json:"level"`
	NextLevel      progression.NextLevel `json:"next_level"`
	TotalCoins     int                   `json:"total_coins"`
	CurrentStreak  int                   `json:"current_streak"`
	LongestStreak  int                   `json:"longest_streak"`
	ActiveProjects int                   `json:"active_projects"`
	TotalProjects  int                   `json:"total_projects"`
	TotalActions   int64                 `json:"total_actions"`
	Today          string                `json:"today"`
	TodayCoins     int                   `json:"today_coins"`
	DailyCoinCap   int                   `json:"daily_coin_cap"`
	TodayActions   []models.Action       `json:"today_actions"`
	Achievements   []string              `json:"achievements"`
	Projects       []models.Project      `json:"projects"`
	DeepWork       []DayMinutes          `json:"deep_work"`
}

// DayMinutes is the deep work logged on one date.
type DayMinutes struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// AchievementStats returns the values achievement criteria are checked against.
func (s *Stats) AchievementStats() progression.Stats {
	return progression.Stats{
		TotalEarnings:  s.TotalEarnings,
		ActiveProjects: s.ActiveProjects,
	}
}

// Derived returns the cached fields the snapshot implies.
func (s *Stats) Derived() models.DerivedFields {
	return models.DerivedFields{
		TotalEarnings: s.TotalEarnings,
		Level:         s.Level.Number,
		CurrentStreak: s.CurrentStreak,
		LongestStreak: s.LongestStreak,
	}
}

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Stats         *Stats
	PreviousLevel int
	LevelChanged  bool
}

// Service computes stats snapshots.
type Service struct {
	db       *repository.DB
	notifier Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

// NewService creates a new aggregator service. notifier may be nil.
func NewService(db *repository.DB, notifier Notifier, log *zerolog.Logger) *Service {
	return &Service{
		db:       db,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Snapshot reads the profile, projects and action history in one read-only
// transaction and derives the user's progression from them.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	start := time.Now()
	defer func() { metrics.ObserveStatsSnapshot(time.Since(start).Seconds()) }()

	var stats *Stats
	err := s.db.ReadSnapshot(ctx, func(tx *repository.DB) error {
		var err error
		stats, err = s.compute(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) compute(ctx context.Context, tx *repository.DB, userID uuid.UUID) (*Stats, error) {
	profile, err := repository.NewProfileRepository(tx).GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	projects, err := repository.NewProjectRepository(tx).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	actions := repository.NewActionRepository(tx)
	dates, err := actions.CompletedDates(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := progression.LocalDate(s.now(), profile.Timezone)
	todayActions, err := actions.ListByDate(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	totalActions, err := actions.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions, err := actions.ListByTypeSince(ctx, userID, models.ActionDeepWork, today.AddDate(0, 0, -(HeatmapDays-1)), 0)
	if err != nil {
		return nil, err
	}

	var earnings float64
	active := 0
	for _, p := range projects {
		earnings += p.Revenue
		if p.Status == models.ProjectStatusLive {
			active++
		}
	}
	earnings = math.Round(earnings*100) / 100
	streaks := progression.CalculateStreaks(dates, today)

	return &Stats{
		Profile:        profile,
		TotalEarnings:  earnings,
		Level:          progression.LevelFromEarnings(earnings),
		NextLevel:      progression.NextLevelInfo(earnings),
		TotalCoins:     profile.TotalCoins,
		CurrentStreak:  streaks.Current,
		LongestStreak:  streaks.Longest,
		ActiveProjects: active,
		TotalProjects:  len(projects),
		TotalActions:   totalActions,
		Today:          models.FormatDate(today),
		TodayCoins:     progression.CoinsEarned(todayActions),
		DailyCoinCap:   progression.DailyCoinCap,
		TodayActions:   todayActions,
		Achievements:   profile.Achievements,
		Projects:       projects,
		DeepWork:       deepWorkMinutes(sessions),
	}, nil
}

// deepWorkMinutes maps deep work sessions to per-day minutes, most recent
// first. A session without a duration counts as zero minutes.
func deepWorkMinutes(sessions []models.Action) []DayMinutes {
	days := make([]DayMinutes, 0, len(sessions))
	for _, a := range sessions {
		if !a.Completed {
			continue
		}
		minutes := 0
		if a.Duration != nil {
			minutes = *a.Duration
		}
		days = append(days, DayMinutes{Date: models.FormatDate(a.Date), Minutes: minutes})
	}
	return days
}

// Refresh recomputes the snapshot and writes the cached earnings, level and
// streak fields back to the profile when they drifted.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*RefreshResult, error) {
	stats, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := stats.Profile
	result := &RefreshResult{
		Stats:         stats,
		PreviousLevel: profile.Level,
		LevelChanged:  profile.Level != stats.Level.Number,
	}

	derived := stats.Derived()
	if derived != currentDerived(profile) {
		if err := repository.NewProfileRepository(s.db).UpdateDerived(ctx, userID, derived); err != nil {
			return nil, fmt.Errorf("failed to refresh profile caches: %w", err)
		}
		profile.TotalEarnings = derived.TotalEarnings
		profile.Level = derived.Level
		profile.CurrentStreak = derived.CurrentStreak
		profile.LongestStreak = derived.LongestStreak
	}

	if result.LevelChanged {
		if stats.Level.Number > result.PreviousLevel {
			metrics.RecordLevelUp(stats.Level.Number)
		}
		s.log.Info().
			Str("user_id", userID.String()).
			Int("from", result.PreviousLevel).
			Int("to", stats.Level.Number).
			Float64("earnings", stats.TotalEarnings).
			Msg("Level changed")

		if s.notifier != nil && stats.Level.Number > result.PreviousLevel {
			from := progression.LevelByNumber(result.PreviousLevel)
			if err := s.notifier.SendLevelUp(ctx, profile.Username, from, stats.Level, stats.TotalEarnings); err != nil {
				s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to announce level up")
			}
		}
	}

	return result, nil
}

func currentDerived(p *models.Profile) models.DerivedFields {
	return models.DerivedFields{
		TotalEarnings: p.TotalEarnings,
		Level:         p.Level,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
	}
}
