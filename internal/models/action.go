package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Action is one completed daily action. At most one row exists per
// (user, action type, calendar date); the unique index enforces it.
type Action struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_actions_user_type_date;index" json:"user_id"`
	ActionType  string    `gorm:"size:32;not null;uniqueIndex:idx_daily_actions_user_type_date" json:"action_type"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_actions_user_type_date" json:"date"`
	Completed   bool      `gorm:"not null;default:true" json:"completed"`
	CoinsEarned int       `gorm:"not null;default:0" json:"coins_earned"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Duration    *int      `json:"duration,omitempty"` // minutes
	Amount      *float64  `gorm:"type:decimal(14,2)" json:"amount,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Action model.
func (Action) TableName() string {
	return "daily_actions"
}

// BeforeCreate assigns an id.
func (a *Action) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ActionType constants.
const (
	ActionDeepWork    = "deep_work"
	ActionSocialPost  = "x_post"
	ActionPush        = "push"
	ActionStreakBonus = "streak_bonus"

	// ActionManualEarning is accepted on input and stored as ActionPush.
	ActionManualEarning = "manual_earning"
)

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format("2006-01-02")
}
