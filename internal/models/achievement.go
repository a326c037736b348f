package models

import (
	"time"

	"github.com/google/uuid"
)

// UserAchievement records one unlocked achievement for a user.
// The (user_id, achievement_id) pair is unique, so unlocking is idempotent.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievements_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"size:64;not null;uniqueIndex:idx_user_achievements_user_achievement" json:"achievement_id"`
	Trigger       string    `gorm:"size:64" json:"trigger"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}

// Achievement rarity tiers.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)
