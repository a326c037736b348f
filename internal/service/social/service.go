// Package social serves a user's recent X posts, falling back to stored and
// then generated posts when the API is unavailable.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/cache"
	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/xapi"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Feed sources.
const (
	SourceCache       = "cache"
	SourceAPI         = "api"
	SourceStored      = "stored"
	SourceSynthesized = "synthesized"
)

// DefaultLimit is the page size when none is requested.
const DefaultLimit = 10

// Errors returned by the feed service.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoSocialHandle  = errors.New("no social handle linked")
	ErrInvalidPost     = errors.New("invalid post")
)

// ProfileReader loads profiles and remembers their resolved X account id.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	SetTwitterID(ctx context.Context, id uuid.UUID, twitterID string) error
}

// PostStore persists posts with insert-or-ignore semantics.
type PostStore interface {
	BulkInsert(ctx context.Context, posts []models.SocialPost) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.SocialPost, error)
}

// Feed is a page of posts and where it came from.
type Feed struct {
	Posts  []models.SocialPost `json:"posts"`
	Source string              `json:"source"`
}

// Service serves social feeds.
type Service struct {
	profiles ProfileReader
	posts    PostStore
	client   xapi.Client
	cache    cache.Cache
	ttl      time.Duration
	maxPosts int
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new feed service. client may be nil, in which case
// every feed is synthesized; c may be nil to disable caching.
func NewService(
	profiles ProfileReader,
	posts PostStore,
	client xapi.Client,
	c cache.Cache,
	cfg *config.SocialConfig,
	log *logger.Logger,
) *Service {
	maxPosts := cfg.MaxPosts
	if maxPosts <= 0 {
		maxPosts = xapi.MaxResults
	}
	return &Service{
		profiles: profiles,
		posts:    posts,
		client:   client,
		cache:    c,
		ttl:      cfg.FeedCacheTTL(),
		maxPosts: maxPosts,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// GetPosts returns up to limit recent posts of the user's linked account.
func (s *Service) GetPosts(ctx context.Context, userID uuid.UUID, limit int) (*Feed, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	if !profile.HasSocialHandle() {
		return nil, ErrNoSocialHandle
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > s.maxPosts {
		limit = s.maxPosts
	}

	handle := strings.ToLower(profile.TwitterUsername)
	key := feedKey(handle, limit)

	if posts, ok := s.cached(ctx, key); ok {
		metrics.RecordSocialFeedRequest(SourceCache)
		return &Feed{Posts: posts, Source: SourceCache}, nil
	}

	if s.client != nil {
		posts, err := s.fetch(ctx, profile, limit)
		if err == nil {
			s.store(ctx, key, posts)
			metrics.RecordSocialFeedRequest(SourceAPI)
			return &Feed{Posts: posts, Source: SourceAPI}, nil
		}
		s.log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Str("handle", handle).
			Msg("Failed to fetch posts from X, serving fallback posts")
	}

	if posts := s.stored(ctx, profile.ID, limit); len(posts) > 0 {
		metrics.RecordSocialFeedRequest(SourceStored)
		return &Feed{Posts: posts, Source: SourceStored}, nil
	}

	metrics.RecordSocialFeedRequest(SourceSynthesized)
	return &Feed{Posts: synthesizePosts(profile, limit, s.now()), Source: SourceSynthesized}, nil
}

// StorePosts saves posts on behalf of userID, skipping ones already stored.
// It returns the number of posts inserted.
func (s *Service) StorePosts(ctx context.Context, userID uuid.UUID, posts []models.SocialPost) (int64, error) {
	rows := make([]models.SocialPost, 0, len(posts))
	for _, p := range posts {
		p.TweetID = strings.TrimSpace(p.TweetID)
		if p.TweetID == "" {
			return 0, fmt.Errorf("%w: tweet_id is required", ErrInvalidPost)
		}
		p.ID = uuid.Nil
		p.UserID = userID
		if p.PostedAt.IsZero() {
			p.PostedAt = s.now().UTC()
		}
		rows = append(rows, p)
	}

	inserted, err := s.posts.BulkInsert(ctx, rows)
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int("received", len(posts)).
		Int64("inserted", inserted).
		Msg("Stored social posts")

	return inserted, nil
}

func (s *Service) fetch(ctx context.Context, profile *models.Profile, limit int) ([]models.SocialPost, error) {
	account, err := s.account(ctx, profile)
	if err != nil {
		return nil, err
	}

	tweets, err := s.client.UserTweets(ctx, account.ID, limit)
	if err != nil {
		return nil, err
	}
	if len(tweets) > limit {
		tweets = tweets[:limit]
	}

	posts := make([]models.SocialPost, 0, len(tweets))
	for _, t := range tweets {
		posts = append(posts, models.SocialPost{
			UserID:         profile.ID,
			TweetID:        t.ID,
			Content:        t.Text,
			AuthorName:     account.Name,
			AuthorUsername: account.Username,
			AuthorAvatar:   account.ProfileImageURL,
			PostedAt:       t.CreatedAt,
			Likes:          t.PublicMetrics.LikeCount,
			Retweets:       t.PublicMetrics.RetweetCount,
			Replies:        t.PublicMetrics.ReplyCount,
		})
	}
	return posts, nil
}

// account resolves the profile's X account. The id is looked up once and
// kept on the profile; later fetches build the author from profile fields.
func (s *Service) account(ctx context.Context, profile *models.Profile) (*xapi.Account, error) {
	if profile.TwitterID != "" {
		name := profile.Name
		if name == "" {
			name = profile.TwitterUsername
		}
		avatar := profile.AvatarURL
		if avatar == "" {
			avatar = unavatarBase + profile.TwitterUsername
		}
		return &xapi.Account{
			ID:              profile.TwitterID,
			Name:            name,
			Username:        profile.TwitterUsername,
			ProfileImageURL: avatar,
		}, nil
	}

	account, err := s.client.LookupUser(ctx, profile.TwitterUsername)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.SetTwitterID(ctx, profile.ID, account.ID); err != nil {
		s.log.Warn().
			Err(err).
			Str("user_id", profile.ID.String()).
			Msg("Failed to remember X account id")
	}
	return account, nil
}

// stored returns previously persisted posts, or nil when none can be read.
func (s *Service) stored(ctx context.Context, userID uuid.UUID, limit int) []models.SocialPost {
	if s.posts == nil {
		return nil
	}
	posts, err := s.posts.ListByUser(ctx, userID, limit)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to read stored posts")
		return nil
	}
	return posts
}

func (s *Service) cached(ctx context.Context, key string) ([]models.SocialPost, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Feed cache read failed")
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var posts []models.SocialPost
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed cached feed")
		return nil, false
	}
	return posts, true
}

// store caches and persists fetched posts. Both are best effort.
func (s *Service) store(ctx context.Context, key string, posts []models.SocialPost) {
	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(posts); err != nil {
			s.log.Warn().Err(err).Msg("Failed to encode feed for cache")
		} else if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Feed cache write failed")
		}
	}

	if s.posts == nil || len(posts) == 0 {
		return
	}
	rows := make([]models.SocialPost, len(posts))
	copy(rows, posts)
	if _, err := s.posts.BulkInsert(ctx, rows); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist fetched posts")
	}
}

func feedKey(handle string, limit int) string {
	return fmt.Sprintf("social:feed:%s:%d", handle, limit)
}
