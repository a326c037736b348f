package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SocialPost is a cached post from the user's linked X account.
type SocialPost struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_social_posts_user_tweet" json:"user_id"`
	TweetID        string    `gorm:"size:64;not null;uniqueIndex:idx_social_posts_user_tweet" json:"tweet_id"`
	Content        string    `gorm:"type:text" json:"content"`
	AuthorName     string    `gorm:"size:255" json:"author_name"`
	AuthorUsername string    `gorm:"size:100" json:"author_username"`
	AuthorAvatar   string    `gorm:"type:text" json:"author_avatar"`
	PostedAt       time.Time `gorm:"index" json:"created_at"`
	Likes          int       `json:"likes"`
	Retweets       int       `json:"retweets"`
	Replies        int       `json:"replies"`
	StoredAt       time.Time `gorm:"autoCreateTime" json:"stored_at"`
}

// TableName specifies the table name for SocialPost model.
func (SocialPost) TableName() string {
	return "social_posts"
}

// BeforeCreate assigns an id.
func (p *SocialPost) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
