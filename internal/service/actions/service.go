// Package actions implements the daily action log and coin accounting.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Errors returned by the action log.
var (
	ErrInvalidActionType = errors.New("invalid action type")
	ErrInvalidPayload    = errors.New("invalid action payload")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrDuplicateAction   = errors.New("action already logged for today")
	ErrInvalidRange      = errors.New("invalid history range")
	ErrProfileNotFound   = aggregator.ErrProfileNotFound
)

// History window bounds, in days.
const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

// Payload carries the user-supplied fields of an action.
type Payload struct {
	Description string
	Duration    *int     // minutes, deep work
	Amount      *float64 // currency, push
}

// Result is the outcome of a successful LogAction.
type Result struct {
	Action          *models.Action `json:"action"`
	CoinsAwarded    int            `json:"coins_awarded"`
	StreakBonus     bool           `json:"streak_bonus"`
	CurrentStreak   int            `json:"current_streak"`
	TotalCoins      int            `json:"total_coins"`
	NewAchievements []string       `json:"new_achievements"`
}

// History is one action type's log over a window ending today.
type History struct {
	ActionType string          `json:"action_type"`
	Since      string          `json:"since"`
	Until      string          `json:"until"`
	Actions    []models.Action `json:"actions"`
}

// Refresher recomputes cached progression fields.
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) (*aggregator.RefreshResult, error)
}

// Evaluator unlocks achievements against a snapshot.
type Evaluator interface {
	EvaluateStats(ctx context.Context, stats *aggregator.Stats, trigger string) ([]string, error)
}

// Service is the action log.
type Service struct {
	db           *repository.DB
	stats        Refresher
	achievements Evaluator
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates a new action log service.
func NewService(db *repository.DB, stats Refresher, achievements Evaluator, log *logger.Logger) *Service {
	return &Service{
		db:           db,
		stats:        stats,
		achievements: achievements,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// LogAction records a completed action for today in the user's timezone and
// awards its coins. manual_earning is recorded as push. A second action of
// the same type on the same day fails with ErrDuplicateAction and awards
// nothing.
func (s *Service) LogAction(ctx context.Context, userID uuid.UUID, actionType string, p Payload) (*Result, error) {
	actionType = progression.NormalizeActionType(actionType)
	if actionType == models.ActionStreakBonus || !progression.IsActionType(actionType) {
		metrics.RecordActionLogged("unknown", "invalid")
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionType, actionType)
	}
	if (p.Duration != nil && *p.Duration < 0) || (p.Amount != nil && *p.Amount < 0) {
		metrics.RecordActionLogged(actionType, "invalid")
		return nil, fmt.Errorf("%w: duration and amount must not be negative", ErrInvalidPayload)
	}

	profile, err := repository.NewProfileRepository(s.db).GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	today := progression.LocalDate(s.now(), profile.Timezone)
	action := &models.Action{
		UserID:      userID,
		ActionType:  actionType,
		Date:        today,
		Completed:   true,
		CoinsEarned: progression.CoinsFor(actionType, p.Duration),
		Description: p.Description,
		Duration:    p.Duration,
		Amount:      p.Amount,
	}

	if err := s.record(ctx, action); err != nil {
		if errors.Is(err, repository.ErrDuplicateAction) {
			metrics.RecordActionLogged(actionType, "duplicate")
			return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateAction, actionType, models.FormatDate(today))
		}
		metrics.RecordActionLogged(actionType, "error")
		return nil, err
	}

	metrics.RecordActionLogged(actionType, "success")
	metrics.RecordCoinsAwarded(actionType, action.CoinsEarned)

	log := s.log.WithUser(userID.String())
	log.Info().
		Str("action_type", actionType).
		Str("date", models.FormatDate(today)).
		Int("coins", action.CoinsEarned).
		Msg("Action logged")

	result := &Result{
		Action:          action,
		CoinsAwarded:    action.CoinsEarned,
		TotalCoins:      profile.TotalCoins + action.CoinsEarned,
		NewAchievements: []string{},
	}

	// The action is committed; cache refresh, bonus and achievements below
	// are follow-ups whose failures are logged, not returned.
	refreshed, err := s.stats.Refresh(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to refresh stats after action")
		return result, nil
	}
	stats := refreshed.Stats
	result.CurrentStreak = stats.CurrentStreak

	if stats.CurrentStreak >= 2 {
		bonus, err := s.awardStreakBonus(ctx, userID, today, stats.CurrentStreak)
		switch {
		case err == nil:
			result.StreakBonus = true
			result.CoinsAwarded += bonus.CoinsEarned
			result.TotalCoins += bonus.CoinsEarned
			stats.TotalCoins += bonus.CoinsEarned
		case errors.Is(err, repository.ErrDuplicateAction):
			// already awarded today
		default:
			log.Warn().Err(err).Msg("Failed to award streak bonus")
		}
	}

	unlocked, err := s.achievements.EvaluateStats(ctx, stats, actionType)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to evaluate achievements after action")
		return result, nil
	}
	result.NewAchievements = unlocked

	return result, nil
}

// awardStreakBonus records the system-awarded streak bonus for date.
func (s *Service) awardStreakBonus(ctx context.Context, userID uuid.UUID, date time.Time, streak int) (*models.Action, error) {
	bonus := &models.Action{
		UserID:      userID,
		ActionType:  models.ActionStreakBonus,
		Date:        date,
		Completed:   true,
		CoinsEarned: progression.CoinsFor(models.ActionStreakBonus, nil),
		Description: fmt.Sprintf("%d-day streak bonus", streak),
	}
	if err := s.record(ctx, bonus); err != nil {
		return nil, err
	}

	metrics.RecordActionLogged(models.ActionStreakBonus, "success")
	metrics.RecordCoinsAwarded(models.ActionStreakBonus, bonus.CoinsEarned)
	s.log.Info().
		Str("user_id", userID.String()).
		Int("streak", streak).
		Msg("Streak bonus awarded")

	return bonus, nil
}

// record inserts the action and increments the coin balance in one transaction.
func (s *Service) record(ctx context.Context, action *models.Action) error {
	return s.db.InTransaction(ctx, func(tx *repository.DB) error {
		if err := repository.NewActionRepository(tx).Create(ctx, action); err != nil {
			return err
		}
		return repository.NewProfileRepository(tx).IncrementCoins(ctx, action.UserID, action.CoinsEarned)
	})
}

// ListActions returns the user's actions on date (YYYY-MM-DD), or today in the
// user's timezone when date is empty. The resolved date is returned as well.
func (s *Service) ListActions(ctx context.Context, userID uuid.UUID, date string) ([]models.Action, string, error) {
	profile, err := repository.NewProfileRepository(s.db).GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, "", err
	}

	day := progression.LocalDate(s.now(), profile.Timezone)
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		day = parsed
	}

	actions, err := repository.NewActionRepository(s.db).ListByDate(ctx, userID, day)
	if err != nil {
		return nil, "", err
	}
	return actions, models.FormatDate(day), nil
}

// History returns the user's actions of one type over the last days days,
// today included, most recent first. days 0 means DefaultHistoryDays.
func (s *Service) History(ctx context.Context, userID uuid.UUID, actionType string, days int) (*History, error) {
	actionType = progression.NormalizeActionType(actionType)
	if !progression.IsActionType(actionType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionType, actionType)
	}
	if days == 0 {
		days = DefaultHistoryDays
	}
	if days < 1 || days > MaxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRange, MaxHistoryDays)
	}

	profile, err := repository.NewProfileRepository(s.db).GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	today := progression.LocalDate(s.now(), profile.Timezone)
	since := today.AddDate(0, 0, -(days - 1))
	list, err := repository.NewActionRepository(s.db).ListByTypeSince(ctx, userID, actionType, since, 0)
	if err != nil {
		return nil, err
	}

	return &History{
		ActionType: actionType,
		Since:      models.FormatDate(since),
		Until:      models.FormatDate(today),
		Actions:    list,
	}, nil
}
