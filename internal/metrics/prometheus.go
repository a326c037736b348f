// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the challenge tracker.
var (
	// Action log.
	ActionsLoggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actions_logged_total",
			Help: "Total action log attempts by outcome",
		},
		[]string{"action_type", "status"},
	)

	CoinsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coins_awarded_total",
			Help: "Total coins awarded",
		},
		[]string{"action_type"},
	)

	// Progression.
	AchievementsUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"achievement", "rarity"},
	)

	LevelUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total number of level-ups, labelled by the new level",
		},
		[]string{"level"},
	)

	ProfilesByLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "profiles_by_level",
			Help: "Number of profiles at each level after the last reconciliation",
		},
		[]string{"level"},
	)

	ProjectMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_mutations_total",
			Help: "Total project ledger mutations",
		},
		[]string{"operation"},
	)

	StatsSnapshotDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stats_snapshot_duration_seconds",
			Help:    "Time taken to assemble a stats snapshot",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)

	// Social feed.
	SocialFeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_feed_requests_total",
			Help: "Total social feed responses by source",
		},
		[]string{"source"},
	)

	SocialAPIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_api_errors_total",
			Help: "Total failed X API calls",
		},
		[]string{"reason"},
	)

	SocialAPILatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "social_api_latency_seconds",
			Help:    "X API round trip time",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
		},
	)

	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// Notifications.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total successful Mattermost notifications",
		},
		[]string{"kind"},
	)

	NotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total failed Mattermost notifications",
		},
		[]string{"kind"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
		[]string{"job"},
	)
)

// RecordActionLogged records an action log attempt.
func RecordActionLogged(actionType, status string) {
	ActionsLoggedTotal.WithLabelValues(actionType, status).Inc()
}

// RecordCoinsAwarded adds awarded coins.
func RecordCoinsAwarded(actionType string, coins int) {
	CoinsAwardedTotal.WithLabelValues(actionType).Add(float64(coins))
}

// RecordAchievementUnlocked records an achievement unlock.
func RecordAchievementUnlocked(achievement, rarity string) {
	AchievementsUnlockedTotal.WithLabelValues(achievement, rarity).Inc()
}

// RecordLevelUp records a level change.
func RecordLevelUp(level int) {
	LevelUpsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

// SetProfilesByLevel replaces the level distribution gauge.
func SetProfilesByLevel(counts map[int]int) {
	ProfilesByLevel.Reset()
	for level, n := range counts {
		ProfilesByLevel.WithLabelValues(strconv.Itoa(level)).Set(float64(n))
	}
}

// RecordProjectMutation records a project create, update or delete.
func RecordProjectMutation(operation string) {
	ProjectMutationsTotal.WithLabelValues(operation).Inc()
}

// ObserveStatsSnapshot observes the duration of a stats snapshot.
func ObserveStatsSnapshot(seconds float64) {
	StatsSnapshotDurationSeconds.Observe(seconds)
}

// RecordSocialFeedRequest records where a feed response came from.
func RecordSocialFeedRequest(source string) {
	SocialFeedRequestsTotal.WithLabelValues(source).Inc()
}

// RecordSocialAPIError records a failed X API call.
func RecordSocialAPIError(reason string) {
	SocialAPIErrorsTotal.WithLabelValues(reason).Inc()
}

// ObserveSocialAPILatency observes an X API round trip.
func ObserveSocialAPILatency(seconds float64) {
	SocialAPILatencySeconds.Observe(seconds)
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(scope string) {
	RateLimitedTotal.WithLabelValues(scope).Inc()
}

// RecordNotificationSent records a successful notification.
func RecordNotificationSent(kind string) {
	NotificationsSentTotal.WithLabelValues(kind).Inc()
}

// RecordNotificationFailed records a failed notification.
func RecordNotificationFailed(kind string) {
	NotificationsFailedTotal.WithLabelValues(kind).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last scheduler run.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
