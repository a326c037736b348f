// Package scheduler runs the nightly reconciliation of cached progression.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/hundredk/challenge-tracker/internal/cache"
	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/mattermost"
	prommetrics "github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/service/aggregator"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

const (
	reconcileJob     = "reconcile"
	reconcileLockKey = "scheduler:lock:reconcile"
	reconcileLockTTL = 30 * time.Minute
)

// ProfileLister lists every profile id.
type ProfileLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Refresher recomputes cached progression fields.
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) (*aggregator.RefreshResult, error)
}

// Evaluator unlocks achievements against a snapshot.
type Evaluator interface {
	EvaluateStats(ctx context.Context, stats *aggregator.Stats, trigger string) ([]string, error)
}

// Reporter posts the run summary.
type Reporter interface {
	SendReconcileSummary(ctx context.Context, s mattermost.ReconcileSummary) error
}

// Service handles the reconciliation schedule.
type Service struct {
	config       *config.SchedulerConfig
	profiles     ProfileLister
	stats        Refresher
	achievements Evaluator
	reporter     Reporter
	lock         cache.Cache
	log          *logger.Logger
	cron         *cron.Cron
}

// NewService creates a new scheduler service. reporter and lock may be nil.
func NewService(
	cfg *config.SchedulerConfig,
	profiles ProfileLister,
	stats Refresher,
	achievements Evaluator,
	reporter Reporter,
	lock cache.Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		config:       cfg,
		profiles:     profiles,
		stats:        stats,
		achievements: achievements,
		reporter:     reporter,
		lock:         lock,
		log:          log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.runReconcile(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register reconcile job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Timezone).
		Str("time", s.config.ReconcileTime).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a daily cron expression from the HH:MM setting.
func (s *Service) buildCronExpression() (string, error) {
	parts := strings.Split(s.config.ReconcileTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.ReconcileTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runReconcile executes the reconcile job with metrics and the run lock.
func (s *Service) runReconcile(ctx context.Context) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(reconcileJob, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(reconcileJob)
	}()

	if !s.acquireLock(ctx) {
		s.log.Info().Msg("Reconcile already running elsewhere, skipping")
		prommetrics.RecordSchedulerJobRun(reconcileJob, "skipped")
		return
	}
	defer s.releaseLock(ctx)

	summary, err := s.Reconcile(ctx)
	if err != nil {
		s.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Reconcile job failed")
		prommetrics.RecordSchedulerJobRun(reconcileJob, "error")
		return
	}

	status := "success"
	if summary.Failed > 0 {
		status = "partial"
	}
	prommetrics.RecordSchedulerJobRun(reconcileJob, status)
	s.report(ctx, summary)
}

// Reconcile refreshes every profile's cached progression and evaluates
// achievements with the reconcile trigger. A failing profile is logged and
// counted; it does not stop the run.
func (s *Service) Reconcile(ctx context.Context) (*mattermost.ReconcileSummary, error) {
	start := time.Now()
	s.log.Info().Msg("Running reconcile job")

	ids, err := s.profiles.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	summary := &mattermost.ReconcileSummary{Profiles: len(ids)}
	byLevel := make(map[int]int, progression.MaxLevel)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		refreshed, err := s.stats.Refresh(ctx, id)
		if err != nil {
			summary.Failed++
			s.log.Warn().Err(err).Str("user_id", id.String()).Msg("Failed to reconcile profile")
			continue
		}
		byLevel[refreshed.Stats.Level.Number]++
		if refreshed.LevelChanged {
			summary.LevelChanges++
		}

		unlocked, err := s.achievements.EvaluateStats(ctx, refreshed.Stats, progression.TriggerReconcile)
		if err != nil {
			summary.Failed++
			s.log.Warn().Err(err).Str("user_id", id.String()).Msg("Failed to evaluate achievements during reconcile")
			continue
		}
		summary.Unlocked += len(unlocked)
	}

	prommetrics.SetProfilesByLevel(byLevel)
	summary.Duration = time.Since(start)

	s.log.Info().
		Int("profiles", summary.Profiles).
		Int("level_changes", summary.LevelChanges).
		Int("achievements_unlocked", summary.Unlocked).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Reconcile job completed")

	return summary, nil
}

// acquireLock takes the cross-instance run lock. Without a lock store, or
// when the store is unreachable, the job runs anyway.
func (s *Service) acquireLock(ctx context.Context) bool {
	if s.lock == nil {
		return true
	}
	ok, err := s.lock.SetNX(ctx, reconcileLockKey, strconv.FormatInt(time.Now().Unix(), 10), reconcileLockTTL)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to take reconcile lock, running unlocked")
		return true
	}
	return ok
}

func (s *Service) releaseLock(ctx context.Context) {
	if s.lock == nil {
		return
	}
	if err := s.lock.Del(ctx, reconcileLockKey); err != nil {
		s.log.Warn().Err(err).Msg("Failed to release reconcile lock")
	}
}
