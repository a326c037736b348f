// Package models defines the persisted domain models of the challenge tracker.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the per-user progression record. TotalEarnings, Level and the
// streak fields are caches derived from the project ledger and action log.
type Profile struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username        string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	Name            string    `gorm:"size:255" json:"name"`
	AvatarURL       string    `gorm:"type:text" json:"avatar_url"`
	Bio             string    `gorm:"type:text" json:"bio,omitempty"`
	TwitterUsername string    `gorm:"size:100" json:"twitter_username,omitempty"`
	TwitterID       string    `gorm:"size:64" json:"twitter_id,omitempty"`
	Timezone        string    `gorm:"size:64" json:"timezone,omitempty"`
	TotalEarnings   float64   `gorm:"type:decimal(14,2);not null;default:0" json:"total_earnings"`
	Level           int       `gorm:"not null;default:1" json:"level"`
	TotalCoins      int       `gorm:"not null;default:0" json:"total_coins"`
	CurrentStreak   int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak   int       `gorm:"not null;default:0" json:"longest_streak"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Achievements is filled from user_achievements by the repository.
	Achievements []string `gorm:"-" json:"achievements"`
}

// TableName specifies the table name for Profile model.
func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate defaults the level of new profiles.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.Level == 0 {
		p.Level = 1
	}
	return nil
}

// HasSocialHandle reports whether a social account is linked.
func (p *Profile) HasSocialHandle() bool {
	return p.TwitterUsername != ""
}

// DerivedFields are the cached values recomputed from the ledger.
type DerivedFields struct {
	TotalEarnings float64
	Level         int
	CurrentStreak int
	LongestStreak int
}
