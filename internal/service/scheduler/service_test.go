package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/mattermost"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/repository"
	"github.com/hundredk/challenge-tracker/internal/service/achievements"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/pkg/logger"
	"github.com/hundredk/challenge-tracker/test/mocks"
)

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		time    string
		want    string
		wantErr bool
	}{
		{name: "nightly at 3am", time: "03:00", want: "0 3 * * *"},
		{name: "daily at 14:30", time: "14:30", want: "30 14 * * *"},
		{name: "midnight", time: "00:00", want: "0 0 * * *"},
		{name: "invalid format no colon", time: "0300", wantErr: true},
		{name: "invalid hour", time: "25:00", wantErr: true},
		{name: "invalid minute", time: "09:60", wantErr: true},
		{name: "not a number", time: "ab:cd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Service{config: &config.SchedulerConfig{ReconcileTime: tt.time}}

			got, err := s.buildCronExpression()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStart_Disabled(t *testing.T) {
	s := NewService(&config.SchedulerConfig{Enabled: false}, nil, nil, nil, nil, nil, logger.Nop())
	require.NoError(t, s.Start())
	assert.Nil(t, s.cron)
	s.Stop()
}

func TestStart_RegistersJob(t *testing.T) {
	s := NewService(&config.SchedulerConfig{
		Enabled:       true,
		ReconcileTime: "03:15",
		Timezone:      "Europe/Paris",
	}, nil, nil, nil, nil, nil, logger.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 1)
}

func TestStart_InvalidConfig(t *testing.T) {
	s := NewService(&config.SchedulerConfig{Enabled: true, ReconcileTime: "03:00", Timezone: "Nowhere/Land"}, nil, nil, nil, nil, nil, logger.Nop())
	assert.Error(t, s.Start())

	s = NewService(&config.SchedulerConfig{Enabled: true, ReconcileTime: "3am", Timezone: "UTC"}, nil, nil, nil, nil, nil, logger.Nop())
	assert.Error(t, s.Start())
}

type recordingReporter struct {
	summaries []mattermost.ReconcileSummary
}

func (r *recordingReporter) SendReconcileSummary(_ context.Context, s mattermost.ReconcileSummary) error {
	r.summaries = append(r.summaries, s)
	return nil
}

type reconcileFixture struct {
	service  *Service
	db       *repository.DB
	reporter *recordingReporter
	lock     *mocks.MockCache
	drifted  *models.Profile
	steady   *models.Profile
}

func setupReconcile(t *testing.T) *reconcileFixture {
	t.Helper()

	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	profiles := repository.NewProfileRepository(db)
	projects := repository.NewProjectRepository(db)

	// revenue written straight to the ledger leaves the caches stale
	drifted := &models.Profile{ID: uuid.New(), Username: "mario"}
	require.NoError(t, profiles.Create(ctx, drifted))
	require.NoError(t, projects.Create(ctx, &models.Project{
		UserID: drifted.ID, Title: "SaaS", Revenue: 1200, Status: models.ProjectStatusLive,
	}))

	steady := &models.Profile{ID: uuid.New(), Username: "luigi"}
	require.NoError(t, profiles.Create(ctx, steady))

	zl := zerolog.Nop()
	stats := aggregator.NewService(db, nil, &zl)
	evaluator := achievements.NewService(stats, repository.NewAchievementRepository(db), nil, logger.Nop())

	f := &reconcileFixture{
		db:       db,
		reporter: &recordingReporter{},
		lock:     mocks.NewMockCache(),
		drifted:  drifted,
		steady:   steady,
	}
	f.service = NewService(&config.SchedulerConfig{}, profiles, stats, evaluator, f.reporter, f.lock, logger.Nop())
	return f
}

func TestReconcile_RepairsCachesAndUnlocks(t *testing.T) {
	f := setupReconcile(t)
	ctx := context.Background()

	summary, err := f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Profiles)
	assert.Equal(t, 1, summary.LevelChanges)
	assert.Equal(t, 3, summary.Unlocked) // first_coin, mushroom_power, fire_flower
	assert.Zero(t, summary.Failed)

	stored, err := repository.NewProfileRepository(f.db).GetByID(ctx, f.drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Level)
	assert.InDelta(t, 1200, stored.TotalEarnings, 0.001)
	assert.ElementsMatch(t, []string{"first_coin", "mushroom_power", "fire_flower"}, stored.Achievements)

	again, err := f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.LevelChanges)
	assert.Zero(t, again.Unlocked)
}

func TestRunReconcile_ReportsAndReleasesLock(t *testing.T) {
	f := setupReconcile(t)
	ctx := context.Background()

	f.service.runReconcile(ctx)
	require.Len(t, f.reporter.summaries, 1)
	assert.Equal(t, 3, f.reporter.summaries[0].Unlocked)

	n, err := f.lock.Exists(ctx, reconcileLockKey)
	require.NoError(t, err)
	assert.Zero(t, n)

	// nothing changed, nothing to report
	f.service.runReconcile(ctx)
	assert.Len(t, f.reporter.summaries, 1)
}

func TestRunReconcile_SkipsWhenLocked(t *testing.T) {
	f := setupReconcile(t)
	ctx := context.Background()

	ok, err := f.lock.SetNX(ctx, reconcileLockKey, "other-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	f.service.runReconcile(ctx)
	assert.Empty(t, f.reporter.summaries)

	stored, err := repository.NewProfileRepository(f.db).GetByID(ctx, f.drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Level)
}

func TestRunReconcile_LockStoreDownRunsAnyway(t *testing.T) {
	f := setupReconcile(t)
	f.lock.SetFailing(true)

	f.service.runReconcile(context.Background())
	assert.Len(t, f.reporter.summaries, 1)
}

type flakyRefresher struct {
	inner Refresher
	fail  uuid.UUID
}

func (r *flakyRefresher) Refresh(ctx context.Context, userID uuid.UUID) (*aggregator.RefreshResult, error) {
	if userID == r.fail {
		return nil, errors.New("row locked")
	}
	return r.inner.Refresh(ctx, userID)
}

func TestReconcile_ContinuesPastFailures(t *testing.T) {
	f := setupReconcile(t)
	f.service.stats = &flakyRefresher{inner: f.service.stats, fail: f.steady.ID}

	summary, err := f.service.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Unlocked)
}

type failingLister struct{}

func (failingLister) ListIDs(context.Context) ([]uuid.UUID, error) {
	return nil, errors.New("db down")
}

func TestReconcile_ListFailure(t *testing.T) {
	s := NewService(&config.SchedulerConfig{}, failingLister{}, nil, nil, nil, nil, logger.Nop())
	_, err := s.Reconcile(context.Background())
	assert.Error(t, err)

	// the cron wrapper swallows the error
	s.runReconcile(context.Background())
}
