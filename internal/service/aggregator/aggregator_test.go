package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
)

type levelUp struct {
	username string
	from, to int
}

type recordingNotifier struct {
	levelUps []levelUp
}

func (n *recordingNotifier) SendLevelUp(_ context.Context, username string, from, to progression.Level, _ float64) error {
	n.levelUps = append(n.levelUps, levelUp{username: username, from: from.Number, to: to.Number})
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T, db *repository.DB, notifier Notifier) *Service {
	t.Helper()

	log := zerolog.Nop()
	service := NewService(db, notifier, &log)
	service.SetClock(func() time.Time { return fixedNow })
	return service
}

func createProfile(t *testing.T, db *repository.DB, username string) *models.Profile {
	t.Helper()

	profile := &models.Profile{ID: uuid.New(), Username: username}
	require.NoError(t, repository.NewProfileRepository(db).Create(context.Background(), profile))
	return profile
}

func createAction(t *testing.T, db *repository.DB, userID uuid.UUID, actionType string, daysAgo, coins int) {
	t.Helper()

	date := progression.Day(fixedNow).AddDate(0, 0, -daysAgo)
	action := &models.Action{UserID: userID, ActionType: actionType, Date: date, Completed: true, CoinsEarned: coins}
	require.NoError(t, repository.NewActionRepository(db).Create(context.Background(), action))
}

func createProject(t *testing.T, db *repository.DB, userID uuid.UUID, revenue float64, status string) {
	t.Helper()

	project := &models.Project{UserID: userID, Title: "Project", Revenue: revenue, Status: status}
	require.NoError(t, repository.NewProjectRepository(db).Create(context.Background(), project))
}

func TestSnapshot_ProfileNotFound(t *testing.T) {
	db := setupTestDB(t)
	service := newTestService(t, db, nil)

	_, err := service.Snapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSnapshot_Empty(t *testing.T) {
	db := setupTestDB(t)
	service := newTestService(t, db, nil)
	profile := createProfile(t, db, "mario")

	stats, err := service.Snapshot(context.Background(), profile.ID)
	require.NoError(t, err)

	assert.Equal(t, 0.0, stats.TotalEarnings)
	assert.Equal(t, 1, stats.Level.Number)
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.Equal(t, 0, stats.LongestStreak)
	assert.Equal(t, 0, stats.TodayCoins)
	assert.Equal(t, 40, stats.DailyCoinCap)
	assert.Equal(t, "2025-03-10", stats.Today)
	assert.Empty(t, stats.TodayActions)
	assert.Empty(t, stats.Projects)
	assert.Zero(t, stats.TotalActions)
	assert.Empty(t, stats.DeepWork)
}

func TestSnapshot_DerivesProgression(t *testing.T) {
	db := setupTestDB(t)
	service := newTestService(t, db, nil)
	profile := createProfile(t, db, "mario")

	createProject(t, db, profile.ID, 800, models.ProjectStatusLive)
	createProject(t, db, profile.ID, 400.5, models.ProjectStatusPaused)
	createProject(t, db, profile.ID, 0, models.ProjectStatusDevelopment)

	createAction(t, db, profile.ID, models.ActionDeepWork, 0, 15)
	createAction(t, db, profile.ID, models.ActionSocialPost, 0, 5)
	createAction(t, db, profile.ID, models.ActionDeepWork, 1, 10)
	createAction(t, db, profile.ID, models.ActionDeepWork, 2, 10)
	createAction(t, db, profile.ID, models.ActionDeepWork, 4, 10)

	stats, err := service.Snapshot(context.Background(), profile.ID)
	require.NoError(t, err)

	assert.InDelta(t, 1200.5, stats.TotalEarnings, 0.001)
	assert.Equal(t, 3, stats.Level.Number)
	require.NotNil(t, stats.NextLevel.Next)
	assert.Equal(t, 4, stats.NextLevel.Next.Number)
	assert.Equal(t, 1, stats.ActiveProjects)
	assert.Equal(t, 3, stats.TotalProjects)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 20, stats.TodayCoins)
	assert.Len(t, stats.TodayActions, 2)
	assert.Equal(t, int64(5), stats.TotalActions)

	achievementStats := stats.AchievementStats()
	assert.InDelta(t, 1200.5, achievementStats.TotalEarnings, 0.001)
	assert.Equal(t, 1, achievementStats.ActiveProjects)
}

func TestSnapshot_DeepWorkHeatmap(t *testing.T) {
	db := setupTestDB(t)
	service := newTestService(t, db, nil)
	profile := createProfile(t, db, "mario")
	repo := repository.NewActionRepository(db)
	ctx := context.Background()

	for _, a := range []struct {
		daysAgo int
		minutes *int
		kind    string
	}{
		{0, intPtr(180), models.ActionDeepWork},
		{3, nil, models.ActionDeepWork},
		{3, nil, models.ActionPush},
		{HeatmapDays - 1, intPtr(45), models.ActionDeepWork},
		{HeatmapDays, intPtr(90), models.ActionDeepWork},
	} {
		action := &models.Action{
			UserID:     profile.ID,
			ActionType: a.kind,
			Date:       progression.Day(fixedNow).AddDate(0, 0, -a.daysAgo),
			Completed:  true,
			Duration:   a.minutes,
		}
		require.NoError(t, repo.Create(ctx, action))
	}

	stats, err := service.Snapshot(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []DayMinutes{
		{Date: "2025-03-10", Minutes: 180},
		{Date: "2025-03-07", Minutes: 0},
		{Date: "2024-03-11", Minutes: 45},
	}, stats.DeepWork)
	assert.Equal(t, int64(5), stats.TotalActions)
}

func intPtr(n int) *int { return &n }

func TestSnapshot_UsesProfileTimezone(t *testing.T) {
	db := setupTestDB(t)
	service := newTestService(t, db, nil)
	profile := createProfile(t, db, "mario")
	profile.Timezone = "Pacific/Auckland" // already March 11 there
	require.NoError(t, repository.NewProfileRepository(db).Update(context.Background(), profile))

	stats, err := service.Snapshot(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", stats.Today)
}

func TestRefresh_WritesCachesAndAnnouncesLevelUp(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	service := newTestService(t, db, notifier)
	profile := createProfile(t, db, "mario")

	createProject(t, db, profile.ID, 5200, models.ProjectStatusLive)
	createAction(t, db, profile.ID, models.ActionPush, 0, 15)
	createAction(t, db, profile.ID, models.ActionPush, 1, 15)

	result, err := service.Refresh(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.True(t, result.LevelChanged)
	assert.Equal(t, 1, result.PreviousLevel)
	assert.Equal(t, 4, result.Stats.Level.Number)

	stored, err := repository.NewProfileRepository(db).GetByID(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5200, stored.TotalEarnings, 0.001)
	assert.Equal(t, 4, stored.Level)
	assert.Equal(t, 2, stored.CurrentStreak)
	assert.Equal(t, 2, stored.LongestStreak)

	require.Len(t, notifier.levelUps, 1)
	assert.Equal(t, levelUp{username: "mario", from: 1, to: 4}, notifier.levelUps[0])

	// A second refresh with unchanged data changes nothing.
	result, err = service.Refresh(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.False(t, result.LevelChanged)
	assert.Len(t, notifier.levelUps, 1)
}

func TestRefresh_LevelDownIsNotAnnounced(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	service := newTestService(t, db, notifier)
	profile := createProfile(t, db, "mario")

	require.NoError(t, repository.NewProfileRepository(db).UpdateDerived(context.Background(), profile.ID, models.DerivedFields{
		TotalEarnings: 2000,
		Level:         3,
	}))

	before := testutil.ToFloat64(metrics.LevelUpsTotal.WithLabelValues("1"))

	result, err := service.Refresh(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.True(t, result.LevelChanged)
	assert.Equal(t, 1, result.Stats.Profile.Level)
	assert.Empty(t, notifier.levelUps)
	assert.Equal(t, before, testutil.ToFloat64(metrics.LevelUpsTotal.WithLabelValues("1")))
}
