package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/models"
)

// ErrDuplicateAction is returned when the (user, type, date) slot is taken.
var ErrDuplicateAction = errors.New("action already logged for this date")

// ActionRepository handles daily action log operations.
type ActionRepository struct {
	db *DB
}

// NewActionRepository creates a new action repository.
func NewActionRepository(db *DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create inserts an action. The unique index on (user_id, action_type, date)
// rejects a second action of the same type on the same day.
func (r *ActionRepository) Create(ctx context.Context, action *models.Action) error {
	if err := r.db.WithContext(ctx).Create(action).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAction
		}
		return fmt.Errorf("failed to create action: %w", err)
	}
	return nil
}

// ListByDate returns the user's actions for one calendar date.
func (r *ActionRepository) ListByDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]models.Action, error) {
	actions := []models.Action{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("created_at ASC").
		Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list actions for %s: %w", models.FormatDate(date), err)
	}
	return actions, nil
}

// CompletedDates returns the distinct dates on which the user completed at
// least one action, most recent first.
func (r *ActionRepository) CompletedDates(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	var actions []models.Action
	err := r.db.WithContext(ctx).
		Select("date").
		Where("user_id = ? AND completed = ?", userID, true).
		Order("date DESC").
		Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed dates: %w", err)
	}

	dates := make([]time.Time, 0, len(actions))
	seen := make(map[string]bool, len(actions))
	for _, a := range actions {
		key := models.FormatDate(a.Date)
		if seen[key] {
			continue
		}
		seen[key] = true
		dates = append(dates, a.Date)
	}
	return dates, nil
}

// CountByUser returns the number of actions the user has logged.
func (r *ActionRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Action{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return count, nil
}

// ListByTypeSince returns the user's actions of one type dated on or after
// since, most recent first. limit <= 0 means no limit.
func (r *ActionRepository) ListByTypeSince(ctx context.Context, userID uuid.UUID, actionType string, since time.Time, limit int) ([]models.Action, error) {
	actions := []models.Action{}
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND action_type = ? AND date >= ?", userID, actionType, since).
		Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s actions since %s: %w", actionType, models.FormatDate(since), err)
	}
	return actions, nil
}
