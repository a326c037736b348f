package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/hundredk/challenge-tracker/internal/models"
)

// AchievementRepository handles unlocked-achievement records.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Award records each achievement id for the user with insert-or-ignore and
// returns the ids this call actually inserted.
func (r *AchievementRepository) Award(ctx context.Context, userID uuid.UUID, ids []string, trigger string, at time.Time) ([]string, error) {
	inserted := make([]string, 0, len(ids))
	for _, id := range ids {
		row := &models.UserAchievement{
			UserID:        userID,
			AchievementID: id,
			Trigger:       trigger,
			UnlockedAt:    at,
		}
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
				DoNothing: true,
			}).
			Create(row)
		if res.Error != nil {
			return inserted, fmt.Errorf("failed to award achievement %s: %w", id, res.Error)
		}
		if res.RowsAffected > 0 {
			inserted = append(inserted, id)
		}
	}
	return inserted, nil
}

// ListIDs returns the user's unlocked achievement ids in unlock order.
func (r *AchievementRepository) ListIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).
		Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Order("id ASC").
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements for %s: %w", userID, err)
	}
	return ids, nil
}

// List returns the user's unlocked achievement records.
func (r *AchievementRepository) List(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements for %s: %w", userID, err)
	}
	return rows, nil
}

// CountByUsers returns the number of unlocked achievements per user.
func (r *AchievementRepository) CountByUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		UserID uuid.UUID
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&models.UserAchievement{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count achievements: %w", err)
	}
	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, nil
}
