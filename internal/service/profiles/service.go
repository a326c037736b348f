// Package profiles manages the user-editable part of a profile.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Errors returned by the profile service.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidProfile  = errors.New("invalid profile")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,50}$`)

// Input is a partial profile update; nil fields are left unchanged.
type Input struct {
	Username        *string
	Name            *string
	AvatarURL       *string
	Bio             *string
	TwitterUsername *string
	Timezone        *string
}

// Repository is the persistence the profile service needs.
type Repository interface {
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
}

// Service handles profile reads and upserts.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new profile service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Get returns the caller's profile.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	return profile, err
}

// GetByUsername returns a profile for the public page.
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	profile, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, username)
	}
	return profile, err
}

// Upsert creates the caller's profile or applies a partial update to it.
// The boolean result reports whether the profile was created.
func (s *Service) Upsert(ctx context.Context, userID uuid.UUID, in Input) (*models.Profile, bool, error) {
	profile, err := s.repo.GetByID(ctx, userID)
	created := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if in.Username == nil || strings.TrimSpace(*in.Username) == "" {
			return nil, false, fmt.Errorf("%w: username is required", ErrInvalidProfile)
		}
		profile = &models.Profile{ID: userID}
		created = true
	case err != nil:
		return nil, false, err
	}

	apply(profile, in)
	if err := validate(profile); err != nil {
		return nil, false, err
	}

	if created {
		err = s.repo.Create(ctx, profile)
	} else {
		err = s.repo.Update(ctx, profile)
	}
	if errors.Is(err, repository.ErrDuplicateUsername) {
		return nil, false, fmt.Errorf("%w: %s", ErrUsernameTaken, profile.Username)
	}
	if err != nil {
		return nil, false, err
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("username", profile.Username).
		Bool("created", created).
		Msg("Profile saved")

	return profile, created, nil
}

func apply(p *models.Profile, in Input) {
	if in.Username != nil {
		p.Username = strings.TrimSpace(*in.Username)
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.AvatarURL != nil {
		p.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Bio != nil {
		p.Bio = *in.Bio
	}
	if in.TwitterUsername != nil {
		handle := strings.TrimPrefix(strings.TrimSpace(*in.TwitterUsername), "@")
		if handle != p.TwitterUsername {
			// a new handle invalidates the resolved account id
			p.TwitterID = ""
		}
		p.TwitterUsername = handle
	}
	if in.Timezone != nil {
		p.Timezone = strings.TrimSpace(*in.Timezone)
	}
}

func validate(p *models.Profile) error {
	if !usernamePattern.MatchString(p.Username) {
		return fmt.Errorf("%w: username must be 2-50 letters, digits, '_' or '-'", ErrInvalidProfile)
	}
	if !progression.ValidTimezone(p.Timezone) {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidProfile, p.Timezone)
	}
	return nil
}
