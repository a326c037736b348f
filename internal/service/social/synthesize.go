package social

import (
	"fmt"
	"time"

	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
)

type template struct {
	text                    func(p *models.Profile, level progression.Level) string
	likes, retweets, replies int
}

var templates = []template{
	{
		text: func(p *models.Profile, _ progression.Level) string {
			day := p.CurrentStreak
			if day < 1 {
				day = 1
			}
			return fmt.Sprintf("Just shipped a new feature! 🚀 The grind never stops. Building in public day %d #buildinpublic #100kchallenge", day)
		},
		likes: 47, retweets: 12, replies: 8,
	},
	{
		text: func(*models.Profile, progression.Level) string {
			return "Deep work session complete ✅ Hours of pure focus on the product. Sometimes you just need to disconnect and build."
		},
		likes: 23, retweets: 5, replies: 3,
	},
	{
		text: func(p *models.Profile, level progression.Level) string {
			return fmt.Sprintf("Level %d reached: %s %s. $%.0f down, on the road to $100K #100kchallenge",
				level.Number, level.Name, level.Emoji, p.TotalEarnings)
		},
		likes: 61, retweets: 9, replies: 14,
	},
}

const unavatarBase = "https://unavatar.io/twitter/"

// synthesizePosts builds placeholder posts from the profile's handle, level
// and streak, one day apart, newest first.
func synthesizePosts(p *models.Profile, limit int, now time.Time) []models.SocialPost {
	if limit > len(templates) {
		limit = len(templates)
	}
	level := progression.LevelFromEarnings(p.TotalEarnings)
	avatar := unavatarBase + p.TwitterUsername

	posts := make([]models.SocialPost, 0, limit)
	for i := 0; i < limit; i++ {
		t := templates[i]
		posts = append(posts, models.SocialPost{
			UserID:         p.ID,
			TweetID:        fmt.Sprintf("generated-%s-%d", p.ID.String()[:8], i+1),
			Content:        t.text(p, level),
			AuthorName:     p.TwitterUsername,
			AuthorUsername: p.TwitterUsername,
			AuthorAvatar:   avatar,
			PostedAt:       now.UTC().Add(-time.Duration(i) * 24 * time.Hour),
			Likes:          t.likes,
			Retweets:       t.retweets,
			Replies:        t.replies,
		})
	}
	return posts
}
