// Package feed provides REST API handlers for the social post feed.
package feed

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/api/middleware"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/service/social"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// SocialService interface for feed operations.
type SocialService interface {
	GetPosts(ctx context.Context, userID uuid.UUID, limit int) (*social.Feed, error)
	StorePosts(ctx context.Context, userID uuid.UUID, posts []models.SocialPost) (int64, error)
}

// Handler handles social feed requests.
type Handler struct {
	socialService SocialService
	log           *logger.Logger
}

// NewHandler creates a new feed handler.
func NewHandler(socialService *social.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(socialService, log)
}

// NewHandlerWithInterfaces creates a new feed handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(socialService SocialService, log *logger.Logger) *Handler {
	return &Handler{socialService: socialService, log: log}
}

// GetPosts returns recent posts of a user's linked account, the caller's by default.
// GET /api/twitter/posts?userId=<uuid>&limit=<n>.
func (h *Handler) GetPosts(c *gin.Context) {
	callerID, ok := middleware.UserID(c)
	if !ok {
		h.emptyFeed(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	targetID := callerID
	if raw := c.Query("userId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.emptyFeed(c, http.StatusBadRequest, "invalid userId: "+raw)
			return
		}
		targetID = parsed
	}

	limit := social.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.emptyFeed(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	feed, err := h.socialService.GetPosts(c.Request.Context(), targetID, limit)
	switch {
	case errors.Is(err, social.ErrProfileNotFound):
		h.emptyFeed(c, http.StatusNotFound, "Profile not found")
		return
	case errors.Is(err, social.ErrNoSocialHandle):
		h.emptyFeed(c, http.StatusNotFound, "No X account linked")
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", targetID.String()).Msg("Failed to load social feed")
		h.emptyFeed(c, http.StatusInternalServerError, "Failed to load posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  feed.Posts,
		"source": feed.Source,
	})
}

type storeRequest struct {
	Tweets []models.SocialPost `json:"tweets" binding:"required"`
}

// StorePosts saves posts for the caller.
// POST /api/twitter/posts.
func (h *Handler) StorePosts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "tweets is required")
		return
	}

	inserted, err := h.socialService.StorePosts(c.Request.Context(), userID, req.Tweets)
	switch {
	case errors.Is(err, social.ErrInvalidPost):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", userID.String()).Int("count", len(req.Tweets)).Msg("Failed to store posts")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to store posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"inserted": inserted,
	})
}

// emptyFeed sends an error response that still carries an empty post list.
func (h *Handler) emptyFeed(c *gin.Context, statusCode int, message string) {
	AbortEmptyFeed(c, statusCode, message)
}

// AbortEmptyFeed rejects a feed request with an empty post list alongside
// the error, so clients can render the feed unconditionally.
func AbortEmptyFeed(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error":     message,
		"posts":     []models.SocialPost{},
		"timestamp": time.Now().UTC(),
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
