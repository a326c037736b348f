// Package tracker provides REST API handlers for the write side of the
// challenge: the caller's profile, daily actions and projects.
package tracker

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
	"github.com/hundredk/challenge-tracker/internal/service/actions"
	"github.com/hundredk/challenge-tracker/internal/service/profiles"
	"github.com/hundredk/challenge-tracker/internal/service/projects"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// ProfileService interface for profile operations.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Upsert(ctx context.Context, userID uuid.UUID, in profiles.Input) (*models.Profile, bool, error)
}

// ActionService interface for daily action operations.
type ActionService interface {
	LogAction(ctx context.Context, userID uuid.UUID, actionType string, p actions.Payload) (*actions.Result, error)
	ListActions(ctx context.Context, userID uuid.UUID, date string) ([]models.Action, string, error)
	History(ctx context.Context, userID uuid.UUID, actionType string, days int) (*actions.History, error)
}

// ProjectService interface for project ledger operations.
type ProjectService interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	Create(ctx context.Context, userID uuid.UUID, in projects.CreateInput) (*projects.Result, error)
	Update(ctx context.Context, userID, projectID uuid.UUID, in projects.UpdateInput) (*projects.Result, error)
	Delete(ctx context.Context, userID, projectID uuid.UUID) (*projects.Result, error)
}

// Handler handles tracker API requests.
type Handler struct {
	profileService ProfileService
	actionService  ActionService
	projectService ProjectService
	log            *logger.Logger
}

// NewHandler creates a new tracker handler.
func NewHandler(
	profileService *profiles.Service,
	actionService *actions.Service,
	projectService *projects.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(profileService, actionService, projectService, log)
}

// NewHandlerWithInterfaces creates a new tracker handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	profileService ProfileService,
	actionService ActionService,
	projectService ProjectService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		profileService: profileService,
		actionService:  actionService,
		projectService: projectService,
		log:            log,
	}
}

// GetProfile returns the caller's profile.
// GET /api/v1/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	profile, err := h.profileService.Get(c.Request.Context(), userID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get profile")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

type profileRequest struct {
	Username        *string `json:"username"`
	Name            *string `json:"name"`
	AvatarURL       *string `json:"avatar_url"`
	Bio             *string `json:"bio"`
	TwitterUsername *string `json:"twitter_username"`
	Timezone        *string `json:"timezone"`
}

// UpsertProfile creates or updates the caller's profile.
// PUT /api/v1/profile.
func (h *Handler) UpsertProfile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, created, err := h.profileService.Upsert(c.Request.Context(), userID, profiles.Input{
		Username:        req.Username,
		Name:            req.Name,
		AvatarURL:       req.AvatarURL,
		Bio:             req.Bio,
		TwitterUsername: req.TwitterUsername,
		Timezone:        req.Timezone,
	})
	switch {
	case errors.Is(err, profiles.ErrInvalidProfile):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, profiles.ErrUsernameTaken):
		h.errorResponse(c, http.StatusConflict, "username already taken")
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to save profile")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"profile": profile, "created": created})
}

// ListActions returns the caller's actions for a day, today by default.
// GET /api/v1/actions?date=YYYY-MM-DD.
func (h *Handler) ListActions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	list, date, err := h.actionService.ListActions(c.Request.Context(), userID, c.Query("date"))
	switch {
	case errors.Is(err, actions.ErrInvalidDate):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, actions.ErrProfileNotFound):
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to list actions")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve actions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"actions": list,
	})
}

// ActionHistory returns the caller's log of one action type, such as the
// deep work sessions behind the heatmap or the push log.
// GET /api/v1/actions/history?type=deep_work&days=30.
func (h *Handler) ActionHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	actionType := c.Query("type")
	if actionType == "" {
		h.errorResponse(c, http.StatusBadRequest, "type parameter is required")
		return
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid days parameter: %s", raw))
			return
		}
		days = n
	}

	history, err := h.actionService.History(c.Request.Context(), userID, actionType, days)
	switch {
	case errors.Is(err, actions.ErrInvalidActionType), errors.Is(err, actions.ErrInvalidRange):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, actions.ErrProfileNotFound):
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get action history")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve action history")
		return
	}

	c.JSON(http.StatusOK, history)
}

type actionRequest struct {
	ActionType  string   `json:"action_type" binding:"required"`
	Description string   `json:"description"`
	Duration    *int     `json:"duration"`
	Amount      *float64 `json:"amount"`
}

// LogAction records one of today's actions for the caller.
// POST /api/v1/actions.
func (h *Handler) LogAction(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "action_type is required")
		return
	}

	result, err := h.actionService.LogAction(c.Request.Context(), userID, req.ActionType, actions.Payload{
		Description: req.Description,
		Duration:    req.Duration,
		Amount:      req.Amount,
	})
	switch {
	case errors.Is(err, actions.ErrInvalidActionType), errors.Is(err, actions.ErrInvalidPayload):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, actions.ErrDuplicateAction):
		h.errorResponse(c, http.StatusConflict, "action already logged today")
		return
	case errors.Is(err, actions.ErrProfileNotFound):
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", userID.String()).Str("action_type", req.ActionType).Msg("Failed to log action")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to log action")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListProjects returns the caller's projects.
// GET /api/v1/projects.
func (h *Handler) ListProjects(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	list, err := h.projectService.List(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to list projects")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve projects")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":       list,
		"total_projects": len(list),
	})
}

type createProjectRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	Revenue     float64 `json:"revenue"`
	Status      string  `json:"status"`
}

// CreateProject adds a project for the caller.
// POST /api/v1/projects.
func (h *Handler) CreateProject(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.projectService.Create(c.Request.Context(), userID, projects.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Revenue:     req.Revenue,
		Status:      req.Status,
	})
	if h.projectError(c, userID, err) {
		return
	}

	c.JSON(http.StatusCreated, result)
}

type updateProjectRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	ImageURL    *string  `json:"image_url"`
	Revenue     *float64 `json:"revenue"`
	Status      *string  `json:"status"`
}

// UpdateProject applies a partial update to one of the caller's projects.
// PATCH /api/v1/projects/:id.
func (h *Handler) UpdateProject(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid project ID: "+c.Param("id"))
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.projectService.Update(c.Request.Context(), userID, projectID, projects.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Revenue:     req.Revenue,
		Status:      req.Status,
	})
	if h.projectError(c, userID, err) {
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteProject removes one of the caller's projects.
// DELETE /api/v1/projects/:id.
func (h *Handler) DeleteProject(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid project ID: "+c.Param("id"))
		return
	}

	result, err := h.projectService.Delete(c.Request.Context(), userID, projectID)
	if h.projectError(c, userID, err) {
		return
	}

	c.JSON(http.StatusOK, result)
}

// Helper functions

// projectError writes the response for a failed project mutation and
// reports whether it did.
func (h *Handler) projectError(c *gin.Context, userID uuid.UUID, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, projects.ErrInvalidProject):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, projects.ErrProjectNotFound):
		h.errorResponse(c, http.StatusNotFound, "Project not found")
	case errors.Is(err, projects.ErrProfileNotFound):
		h.errorResponse(c, http.StatusNotFound, "Profile not found")
	default:
		h.log.Error().Err(err).Str("user_id", userID.String()).Msg("Project operation failed")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to save project")
	}
	return true
}

// userID returns the authenticated caller or writes a 401.
func (h *Handler) userID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "Authentication required")
	}
	return userID, ok
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
