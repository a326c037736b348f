// Package projects manages the project ledger whose revenue drives levels.
package projects

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Errors returned by the project ledger.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidProject  = errors.New("invalid project")
	ErrProfileNotFound = aggregator.ErrProfileNotFound
)

// CreateInput holds the fields of a new project.
type CreateInput struct {
	Title       string
	Description string
	ImageURL    string
	Revenue     float64
	Status      string
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	ImageURL    *string
	Revenue     *float64
	Status      *string
}

// Result is a mutated project with the progression changes it caused.
type Result struct {
	Project         *models.Project   `json:"project,omitempty"`
	Level           progression.Level `json:"level"`
	LevelChanged    bool              `json:"level_changed"`
	TotalEarnings   float64           `json:"total_earnings"`
	NewAchievements []string          `json:"new_achievements"`
}

// Refresher recomputes cached progression fields.
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) (*aggregator.RefreshResult, error)
}

// Evaluator unlocks achievements against a snapshot.
type Evaluator interface {
	EvaluateStats(ctx context.Context, stats *aggregator.Stats, trigger string) ([]string, error)
}

// Service handles project ledger operations.
type Service struct {
	db           *repository.DB
	projects     *repository.ProjectRepository
	stats        Refresher
	achievements Evaluator
	log          *logger.Logger
}

// NewService creates a new project service.
func NewService(db *repository.DB, stats Refresher, achievements Evaluator, log *logger.Logger) *Service {
	return &Service{
		db:           db,
		projects:     repository.NewProjectRepository(db),
		stats:        stats,
		achievements: achievements,
		log:          log,
	}
}

// List returns the user's projects, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	return s.projects.ListByUser(ctx, userID)
}

// Create adds a project. A project created with revenue counts as the
// user's first earning for achievement purposes.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Result, error) {
	if in.Status == "" {
		in.Status = models.ProjectStatusDevelopment
	}
	project := &models.Project{
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Revenue:     roundCents(in.Revenue),
		Status:      in.Status,
	}
	if err := validate(project); err != nil {
		return nil, err
	}

	if _, err := repository.NewProfileRepository(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		return nil, err
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	metrics.RecordProjectMutation("create")

	trigger := progression.TriggerProjectUpdate
	if project.Revenue > 0 {
		trigger = progression.TriggerFirstEarning
	}
	return s.afterMutation(ctx, userID, project, trigger), nil
}

// Update applies a partial update to a project owned by userID.
func (s *Service) Update(ctx context.Context, userID, projectID uuid.UUID, in UpdateInput) (*Result, error) {
	project, err := s.projects.GetForUser(ctx, userID, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}

	earningsTouched := false
	if in.Title != nil {
		project.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.ImageURL != nil {
		project.ImageURL = *in.ImageURL
	}
	if in.Revenue != nil {
		earningsTouched = earningsTouched || roundCents(*in.Revenue) != project.Revenue
		project.Revenue = roundCents(*in.Revenue)
	}
	if in.Status != nil {
		earningsTouched = earningsTouched || *in.Status != project.Status
		project.Status = *in.Status
	}
	if err := validate(project); err != nil {
		return nil, err
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	metrics.RecordProjectMutation("update")

	trigger := progression.TriggerProjectUpdate
	if earningsTouched {
		trigger = progression.TriggerRevenueUpdate
	}
	return s.afterMutation(ctx, userID, project, trigger), nil
}

// Delete removes a project owned by userID.
func (s *Service) Delete(ctx context.Context, userID, projectID uuid.UUID) (*Result, error) {
	if err := s.projects.Delete(ctx, userID, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, err
	}
	metrics.RecordProjectMutation("delete")

	return s.afterMutation(ctx, userID, nil, progression.TriggerProjectUpdate), nil
}

// afterMutation refreshes the profile caches and evaluates achievements.
// The ledger write is already committed, so failures here are logged and
// left to the nightly reconciliation.
func (s *Service) afterMutation(ctx context.Context, userID uuid.UUID, project *models.Project, trigger string) *Result {
	result := &Result{Project: project, NewAchievements: []string{}}
	log := s.log.WithUser(userID.String())

	refreshed, err := s.stats.Refresh(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to refresh stats after project change")
		return result
	}
	result.Level = refreshed.Stats.Level
	result.LevelChanged = refreshed.LevelChanged
	result.TotalEarnings = refreshed.Stats.TotalEarnings

	unlocked, err := s.achievements.EvaluateStats(ctx, refreshed.Stats, trigger)
	if err != nil {
		log.Warn().Err(err).Str("trigger", trigger).Msg("Failed to evaluate achievements after project change")
		return result
	}
	result.NewAchievements = unlocked
	return result
}

func validate(p *models.Project) error {
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidProject)
	}
	if p.Revenue < 0 || math.IsNaN(p.Revenue) || math.IsInf(p.Revenue, 0) {
		return fmt.Errorf("%w: revenue must be a non-negative amount", ErrInvalidProject)
	}
	if !models.ValidProjectStatus(p.Status) {
		return fmt.Errorf("%w: status must be development, live or paused", ErrInvalidProject)
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
