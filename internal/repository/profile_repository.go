package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hundredk/challenge-tracker/internal/models"
)

// ErrDuplicateUsername is returned when a username is already taken.
var ErrDuplicateUsername = errors.New("username already taken")

// leaderboardColumns lists the profile columns that can be ranked on.
var leaderboardColumns = map[string]bool{
	"total_earnings": true,
	"total_coins":    true,
	"current_streak": true,
	"longest_streak": true,
}

// ProfileRepository handles profile-related database operations.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Update saves the editable profile fields. Cached progression fields are
// left untouched; they are written by UpdateDerived and IncrementCoins.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	err := r.db.WithContext(ctx).
		Model(profile).
		Select("username", "name", "avatar_url", "bio", "twitter_username", "twitter_id", "timezone", "updated_at").
		Updates(profile).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to update profile %s: %w", profile.ID, err)
	}
	return nil
}

// GetByID retrieves a profile by user id, including unlocked achievement ids.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.loadAchievements(ctx, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUsername retrieves a profile by username.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.loadAchievements(ctx, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) loadAchievements(ctx context.Context, profile *models.Profile) error {
	ids, err := NewAchievementRepository(r.db).ListIDs(ctx, profile.ID)
	if err != nil {
		return err
	}
	profile.Achievements = ids
	return nil
}

// UpdateDerived writes the cached progression fields.
func (r *ProfileRepository) UpdateDerived(ctx context.Context, id uuid.UUID, d models.DerivedFields) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_earnings": d.TotalEarnings,
			"level":          d.Level,
			"current_streak": d.CurrentStreak,
			"longest_streak": d.LongestStreak,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update derived fields for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementCoins atomically adds n to the profile's coin balance.
func (r *ProfileRepository) IncrementCoins(ctx context.Context, id uuid.UUID, n int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		UpdateColumn("total_coins", gorm.Expr("total_coins + ?", n))
	if res.Error != nil {
		return fmt.Errorf("failed to increment coins for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns every profile id.
func (r *ProfileRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list profile ids: %w", err)
	}
	return ids, nil
}

// TopBy returns the profiles with the highest value of metric.
func (r *ProfileRepository) TopBy(ctx context.Context, metric string, limit int) ([]models.Profile, error) {
	if !leaderboardColumns[metric] {
		return nil, fmt.Errorf("unsupported leaderboard metric %q", metric)
	}
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Order(metric + " DESC").
		Order("created_at ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank profiles by %s: %w", metric, err)
	}
	return profiles, nil
}

// SetTwitterID stores the resolved X account id for the profile.
func (r *ProfileRepository) SetTwitterID(ctx context.Context, id uuid.UUID, twitterID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		UpdateColumn("twitter_id", twitterID)
	if res.Error != nil {
		return fmt.Errorf("failed to set twitter id for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
