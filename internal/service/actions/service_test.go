package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/achievements"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

var fixedNow = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

type testEnv struct {
	db      *repository.DB
	service *Service
	profile *models.Profile
}

func setup(t *testing.T, timezone string) *testEnv {
	t.Helper()

	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	profile := &models.Profile{ID: uuid.New(), Username: "mario", Timezone: timezone}
	require.NoError(t, repository.NewProfileRepository(db).Create(context.Background(), profile))

	zl := zerolog.Nop()
	stats := aggregator.NewService(db, nil, &zl)
	stats.SetClock(func() time.Time { return fixedNow })
	evaluator := achievements.NewService(stats, repository.NewAchievementRepository(db), nil, logger.Nop())

	service := NewService(db, stats, evaluator, logger.Nop())
	service.SetClock(func() time.Time { return fixedNow })

	return &testEnv{db: db, service: service, profile: profile}
}

func (e *testEnv) coins(t *testing.T) int {
	t.Helper()
	p, err := repository.NewProfileRepository(e.db).GetByID(context.Background(), e.profile.ID)
	require.NoError(t, err)
	return p.TotalCoins
}

func (e *testEnv) seedAction(t *testing.T, actionType string, daysAgo int) {
	t.Helper()
	action := &models.Action{
		UserID:      e.profile.ID,
		ActionType:  actionType,
		Date:        progression.Day(fixedNow).AddDate(0, 0, -daysAgo),
		Completed:   true,
		CoinsEarned: 10,
	}
	require.NoError(t, repository.NewActionRepository(e.db).Create(context.Background(), action))
}

func minutes(n int) *int { return &n }

func TestLogAction_DeepWorkBoundary(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()

	result, err := env.service.LogAction(ctx, env.profile.ID, models.ActionDeepWork, Payload{Duration: minutes(150)})
	require.NoError(t, err)
	assert.Equal(t, 15, result.CoinsAwarded)
	assert.Equal(t, "2025-03-10", models.FormatDate(result.Action.Date))
	assert.False(t, result.StreakBonus)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.Equal(t, 15, result.TotalCoins)

	other := setup(t, "")
	result, err = other.service.LogAction(ctx, other.profile.ID, models.ActionDeepWork, Payload{Duration: minutes(149)})
	require.NoError(t, err)
	assert.Equal(t, 10, result.CoinsAwarded)
	assert.Equal(t, 10, other.coins(t))
}

func TestLogAction_DuplicateDoesNotDoubleAward(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()

	_, err := env.service.LogAction(ctx, env.profile.ID, models.ActionSocialPost, Payload{Description: "thread"})
	require.NoError(t, err)
	assert.Equal(t, 5, env.coins(t))

	_, err = env.service.LogAction(ctx, env.profile.ID, models.ActionSocialPost, Payload{Description: "again"})
	assert.ErrorIs(t, err, ErrDuplicateAction)
	assert.Equal(t, 5, env.coins(t))

	// a different type on the same day is fine
	result, err := env.service.LogAction(ctx, env.profile.ID, models.ActionPush, Payload{Amount: floatPtr(49.99)})
	require.NoError(t, err)
	assert.Equal(t, 15, result.CoinsAwarded)
	require.NotNil(t, result.Action.Amount)
	assert.InDelta(t, 49.99, *result.Action.Amount, 0.001)
	assert.Equal(t, 20, env.coins(t))
}

func TestLogAction_ConcurrentDuplicates(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.service.LogAction(ctx, env.profile.ID, models.ActionPush, Payload{})
		}(i)
	}
	wg.Wait()

	succeeded, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateAction):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicates)
	assert.Equal(t, 15, env.coins(t))
}

func TestLogAction_Validation(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()

	_, err := env.service.LogAction(ctx, env.profile.ID, "nap", Payload{})
	assert.ErrorIs(t, err, ErrInvalidActionType)

	_, err = env.service.LogAction(ctx, env.profile.ID, models.ActionStreakBonus, Payload{})
	assert.ErrorIs(t, err, ErrInvalidActionType)

	_, err = env.service.LogAction(ctx, env.profile.ID, models.ActionDeepWork, Payload{Duration: minutes(-5)})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = env.service.LogAction(ctx, env.profile.ID, models.ActionPush, Payload{Amount: floatPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = env.service.LogAction(ctx, uuid.New(), models.ActionPush, Payload{})
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.Equal(t, 0, env.coins(t))
}

func TestLogAction_ManualEarningStoredAsPush(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()
	amount := 49.99

	result, err := env.service.LogAction(ctx, env.profile.ID, models.ActionManualEarning, Payload{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, models.ActionPush, result.Action.ActionType)
	assert.Equal(t, 15, result.CoinsAwarded)

	// both names share the once-per-day slot
	_, err = env.service.LogAction(ctx, env.profile.ID, models.ActionPush, Payload{})
	assert.ErrorIs(t, err, ErrDuplicateAction)
	assert.Equal(t, 15, env.coins(t))
}

func TestLogAction_StreakBonus(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()
	env.seedAction(t, models.ActionDeepWork, 1)

	result, err := env.service.LogAction(ctx, env.profile.ID, models.ActionDeepWork, Payload{Duration: minutes(60)})
	require.NoError(t, err)
	assert.True(t, result.StreakBonus)
	assert.Equal(t, 2, result.CurrentStreak)
	assert.Equal(t, 15, result.CoinsAwarded) // 10 + 5 bonus
	assert.Equal(t, 15, env.coins(t))

	// the bonus is awarded once per day
	result, err = env.service.LogAction(ctx, env.profile.ID, models.ActionSocialPost, Payload{})
	require.NoError(t, err)
	assert.False(t, result.StreakBonus)
	assert.Equal(t, 5, result.CoinsAwarded)
	assert.Equal(t, 20, env.coins(t))

	actions, date, err := env.service.ListActions(ctx, env.profile.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", date)
	assert.Len(t, actions, 3)

	stored, err := repository.NewProfileRepository(env.db).GetByID(ctx, env.profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStreak)
}

func TestLogAction_UsesUserTimezone(t *testing.T) {
	env := setup(t, "Pacific/Auckland")
	ctx := context.Background()

	result, err := env.service.LogAction(ctx, env.profile.ID, models.ActionPush, Payload{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", models.FormatDate(result.Action.Date))

	invalid := setup(t, "Nowhere/Special")
	result, err = invalid.service.LogAction(ctx, invalid.profile.ID, models.ActionPush, Payload{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", models.FormatDate(result.Action.Date))
}

func TestLogAction_TriggersAchievements(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()
	require.NoError(t, repository.NewProjectRepository(env.db).Create(ctx, &models.Project{
		UserID: env.profile.ID, Title: "Shop", Revenue: 0, Status: models.ProjectStatusLive,
	}))

	result, err := env.service.LogAction(ctx, env.profile.ID, models.ActionPush, Payload{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mushroom_power"}, result.NewAchievements)
}

func TestListActions(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()
	env.seedAction(t, models.ActionDeepWork, 3)

	actions, date, err := env.service.ListActions(ctx, env.profile.ID, "2025-03-07")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-07", date)
	assert.Len(t, actions, 1)

	actions, _, err = env.service.ListActions(ctx, env.profile.ID, "")
	require.NoError(t, err)
	assert.Empty(t, actions)

	_, _, err = env.service.ListActions(ctx, env.profile.ID, "03/07/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, _, err = env.service.ListActions(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestHistory(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()
	env.seedAction(t, models.ActionDeepWork, 0)
	env.seedAction(t, models.ActionDeepWork, 6)
	env.seedAction(t, models.ActionDeepWork, 7)
	env.seedAction(t, models.ActionPush, 2)

	week, err := env.service.History(ctx, env.profile.ID, models.ActionDeepWork, 7)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", week.Since)
	assert.Equal(t, "2025-03-10", week.Until)
	require.Len(t, week.Actions, 2)
	assert.Equal(t, "2025-03-10", models.FormatDate(week.Actions[0].Date))
	assert.Equal(t, "2025-03-04", models.FormatDate(week.Actions[1].Date))

	month, err := env.service.History(ctx, env.profile.ID, models.ActionDeepWork, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-09", month.Since)
	assert.Len(t, month.Actions, 3)

	pushes, err := env.service.History(ctx, env.profile.ID, models.ActionManualEarning, 30)
	require.NoError(t, err)
	assert.Equal(t, models.ActionPush, pushes.ActionType)
	assert.Len(t, pushes.Actions, 1)
}

func TestHistory_Validation(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()

	_, err := env.service.History(ctx, env.profile.ID, "meditation", 7)
	assert.ErrorIs(t, err, ErrInvalidActionType)

	_, err = env.service.History(ctx, env.profile.ID, models.ActionDeepWork, -1)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = env.service.History(ctx, env.profile.ID, models.ActionDeepWork, MaxHistoryDays+1)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = env.service.History(ctx, uuid.New(), models.ActionDeepWork, 7)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func floatPtr(f float64) *float64 { return &f }
