// Package dashboard provides REST API handlers for the read side of the
// challenge: levels, the achievement catalog, stats, the leaderboard and
// public profile pages.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/api/middleware"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/service/achievements"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/leaderboard"
	"github.com/hundredk/challenge-tracker/internal/service/profiles"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// StatsService interface for stats snapshots.
type StatsService interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*aggregator.Stats, error)
}

// AchievementService interface for achievement listings.
type AchievementService interface {
	List(ctx context.Context, userID uuid.UUID) ([]achievements.Entry, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	Get(ctx context.Context, metric string, limit int) ([]leaderboard.Entry, error)
}

// ProfileService interface for public profile lookups.
type ProfileService interface {
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	statsService       StatsService
	achievementService AchievementService
	leaderboardService LeaderboardService
	profileService     ProfileService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(
	statsService *aggregator.Service,
	achievementService *achievements.Service,
	leaderboardService *leaderboard.Service,
	profileService *profiles.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(statsService, achievementService, leaderboardService, profileService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	statsService StatsService,
	achievementService AchievementService,
	leaderboardService LeaderboardService,
	profileService ProfileService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		statsService:       statsService,
		achievementService: achievementService,
		leaderboardService: leaderboardService,
		profileService:     profileService,
		log:                log,
	}
}

// GetLevels returns the level table.
// GET /api/v1/levels.
func (h *Handler) GetLevels(c *gin.Context) {
	levels := progression.Levels()
	c.JSON(http.StatusOK, gin.H{
		"levels":       levels,
		"goal":         levels[len(levels)-1].Threshold,
		"generated_at": time.Now().UTC(),
	})
}

// GetAchievementCatalog returns every achievement definition.
// GET /api/v1/achievements/catalog.
func (h *Handler) GetAchievementCatalog(c *gin.Context) {
	catalog := progression.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"achievements":       catalog,
		"total_achievements": len(catalog),
		"generated_at":       time.Now().UTC(),
	})
}

// GetStats returns the caller's stats snapshot.
// GET /api/v1/stats.
func (h *Handler) GetStats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.statsService.Snapshot(c.Request.Context(), userID)
	if errors.Is(err, aggregator.ErrProfileNotFound) {
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetAchievements returns the catalog with the caller's unlock state.
// GET /api/v1/achievements.
func (h *Handler) GetAchievements(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	entries, err := h.achievementService.List(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievements")
		return
	}

	unlocked := 0
	for _, e := range entries {
		if e.Unlocked {
			unlocked++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"achievements":       entries,
		"unlocked":           unlocked,
		"total_achievements": len(entries),
		"generated_at":       time.Now().UTC(),
	})
}

// GetLeaderboard returns the global ranking.
// GET /api/v1/leaderboard?metric=total_earnings&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	metric := c.DefaultQuery("metric", leaderboard.MetricEarnings)
	if !leaderboard.ValidMetric(metric) {
		h.errorResponse(c, http.StatusBadRequest,
			fmt.Sprintf("invalid metric: %s (valid: total_earnings, total_coins, current_streak, longest_streak)", metric))
		return
	}
	limit, err := h.parseLimit(c, leaderboard.DefaultLimit)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.Get(c.Request.Context(), metric, limit)
	if err != nil {
		h.log.Error().Err(err).Str("metric", metric).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Str("metric", metric).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"metric":        metric,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// publicProfile is the subset of a profile shown on the public page.
type publicProfile struct {
	Username        string    `json:"username"`
	Name            string    `json:"name"`
	AvatarURL       string    `json:"avatar_url"`
	Bio             string    `json:"bio,omitempty"`
	TwitterUsername string    `json:"twitter_username,omitempty"`
	JoinedAt        time.Time `json:"joined_at"`
}

// publicStats is the subset of stats shown on the public page.
type publicStats struct {
	TotalEarnings  float64               `json:"total_earnings"`
	Level          progression.Level     `json:"level"`
	NextLevel      progression.NextLevel `json:"next_level"`
	TotalCoins     int                   `json:"total_coins"`
	CurrentStreak  int                   `json:"current_streak"`
	LongestStreak  int                   `json:"longest_streak"`
	ActiveProjects int                   `json:"active_projects"`
	TotalProjects  int                   `json:"total_projects"`
	TotalActions   int64                 `json:"total_actions"`
	Achievements   []string              `json:"achievements"`
}

// GetPublicProfile returns a user's public page.
// GET /api/v1/u/:username.
func (h *Handler) GetPublicProfile(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		h.errorResponse(c, http.StatusBadRequest, "username parameter is required")
		return
	}

	profile, err := h.profileService.GetByUsername(c.Request.Context(), username)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("Failed to get public profile")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}

	stats, err := h.statsService.Snapshot(c.Request.Context(), profile.ID)
	if errors.Is(err, aggregator.ErrProfileNotFound) {
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("Failed to get public stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": publicProfile{
			Username:        profile.Username,
			Name:            profile.Name,
			AvatarURL:       profile.AvatarURL,
			Bio:             profile.Bio,
			TwitterUsername: profile.TwitterUsername,
			JoinedAt:        profile.CreatedAt,
		},
		"stats": publicStats{
			TotalEarnings:  stats.TotalEarnings,
			Level:          stats.Level,
			NextLevel:      stats.NextLevel,
			TotalCoins:     stats.TotalCoins,
			CurrentStreak:  stats.CurrentStreak,
			LongestStreak:  stats.LongestStreak,
			ActiveProjects: stats.ActiveProjects,
			TotalProjects:  stats.TotalProjects,
			TotalActions:   stats.TotalActions,
			Achievements:   stats.Achievements,
		},
		"projects":     stats.Projects,
		"deep_work":    stats.DeepWork,
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > leaderboard.MaxLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", leaderboard.MaxLimit)
	}

	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
