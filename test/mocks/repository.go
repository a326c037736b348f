package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
)

// MockAchievementRepository is a map-backed achievement store with the same
// insert-or-ignore semantics as the database.
type MockAchievementRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]models.UserAchievement

	AwardErr error
	Calls    int
}

// NewMockAchievementRepository creates an empty store.
func NewMockAchievementRepository() *MockAchievementRepository {
	return &MockAchievementRepository{rows: make(map[uuid.UUID][]models.UserAchievement)}
}

// Award records ids not yet present and returns those inserted.
func (m *MockAchievementRepository) Award(_ context.Context, userID uuid.UUID, ids []string, trigger string, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.AwardErr != nil {
		return nil, m.AwardErr
	}

	have := make(map[string]bool)
	for _, row := range m.rows[userID] {
		have[row.AchievementID] = true
	}

	inserted := []string{}
	for _, id := range ids {
		if have[id] {
			continue
		}
		have[id] = true
		m.rows[userID] = append(m.rows[userID], models.UserAchievement{
			UserID:        userID,
			AchievementID: id,
			Trigger:       trigger,
			UnlockedAt:    at,
		})
		inserted = append(inserted, id)
	}
	return inserted, nil
}

// List returns the user's records in insertion order.
func (m *MockAchievementRepository) List(_ context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.UserAchievement, len(m.rows[userID]))
	copy(out, m.rows[userID])
	return out, nil
}

// IDs returns the user's unlocked ids.
func (m *MockAchievementRepository) IDs(userID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.rows[userID]))
	for _, row := range m.rows[userID] {
		ids = append(ids, row.AchievementID)
	}
	return ids
}

// MockProfileRepository is a map-backed profile store.
type MockProfileRepository struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.Profile

	GetErr error
}

// NewMockProfileRepository creates a store seeded with profiles.
func NewMockProfileRepository(profiles ...*models.Profile) *MockProfileRepository {
	m := &MockProfileRepository{profiles: make(map[uuid.UUID]*models.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

// GetByID returns a copy of the profile or ErrNotFound.
func (m *MockProfileRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// GetByUsername returns a copy of the profile with username or ErrNotFound.
func (m *MockProfileRepository) GetByUsername(_ context.Context, username string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, p := range m.profiles {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create stores a new profile, enforcing unique usernames.
func (m *MockProfileRepository) Create(_ context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.usernameTaken(profile.ID, profile.Username) {
		return repository.ErrDuplicateUsername
	}
	if profile.Level == 0 {
		profile.Level = 1
	}
	cp := *profile
	m.profiles[profile.ID] = &cp
	return nil
}

// Update replaces a stored profile, enforcing unique usernames.
func (m *MockProfileRepository) Update(_ context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profile.ID]; !ok {
		return repository.ErrNotFound
	}
	if m.usernameTaken(profile.ID, profile.Username) {
		return repository.ErrDuplicateUsername
	}
	cp := *profile
	m.profiles[profile.ID] = &cp
	return nil
}

// SetTwitterID records the resolved X account id on a stored profile.
func (m *MockProfileRepository) SetTwitterID(_ context.Context, id uuid.UUID, twitterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.TwitterID = twitterID
	return nil
}

func (m *MockProfileRepository) usernameTaken(id uuid.UUID, username string) bool {
	for _, p := range m.profiles {
		if p.ID != id && p.Username == username {
			return true
		}
	}
	return false
}
