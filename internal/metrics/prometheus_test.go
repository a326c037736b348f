package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordActionLogged(t *testing.T) {
	// Reset the counter before test
	ActionsLoggedTotal.Reset()

	RecordActionLogged("deep_work", "success")
	RecordActionLogged("deep_work", "success")
	RecordActionLogged("deep_work", "duplicate")

	count := testutil.ToFloat64(ActionsLoggedTotal.WithLabelValues("deep_work", "success"))
	if count != 2 {
		t.Errorf("Expected deep_work success count = 2, got %f", count)
	}

	count = testutil.ToFloat64(ActionsLoggedTotal.WithLabelValues("deep_work", "duplicate"))
	if count != 1 {
		t.Errorf("Expected deep_work duplicate count = 1, got %f", count)
	}
}

func TestRecordCoinsAwarded(t *testing.T) {
	CoinsAwardedTotal.Reset()

	RecordCoinsAwarded("deep_work", 15)
	RecordCoinsAwarded("deep_work", 10)

	count := testutil.ToFloat64(CoinsAwardedTotal.WithLabelValues("deep_work"))
	if count != 25 {
		t.Errorf("Expected 25 coins, got %f", count)
	}
}

func TestRecordAchievementUnlocked(t *testing.T) {
	AchievementsUnlockedTotal.Reset()

	RecordAchievementUnlocked("star_power", "epic")

	count := testutil.ToFloat64(AchievementsUnlockedTotal.WithLabelValues("star_power", "epic"))
	if count != 1 {
		t.Errorf("Expected star_power count = 1, got %f", count)
	}
}

func TestRecordLevelUp(t *testing.T) {
	LevelUpsTotal.Reset()

	RecordLevelUp(3)
	RecordLevelUp(3)

	count := testutil.ToFloat64(LevelUpsTotal.WithLabelValues("3"))
	if count != 2 {
		t.Errorf("Expected level 3 count = 2, got %f", count)
	}
}

func TestSetProfilesByLevel(t *testing.T) {
	SetProfilesByLevel(map[int]int{1: 4, 2: 1})
	SetProfilesByLevel(map[int]int{1: 3})

	if got := testutil.ToFloat64(ProfilesByLevel.WithLabelValues("1")); got != 3 {
		t.Errorf("Expected 3 profiles at level 1, got %f", got)
	}
	if n := testutil.CollectAndCount(ProfilesByLevel); n != 1 {
		t.Errorf("Expected stale levels to be reset, got %d series", n)
	}
}

func TestRecordSocialFeed(t *testing.T) {
	SocialFeedRequestsTotal.Reset()
	SocialAPIErrorsTotal.Reset()

	RecordSocialFeedRequest("fallback")
	RecordSocialAPIError("http_500")
	ObserveSocialAPILatency(0.2)

	if got := testutil.ToFloat64(SocialFeedRequestsTotal.WithLabelValues("fallback")); got != 1 {
		t.Errorf("Expected 1 fallback response, got %f", got)
	}
	if got := testutil.ToFloat64(SocialAPIErrorsTotal.WithLabelValues("http_500")); got != 1 {
		t.Errorf("Expected 1 api error, got %f", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/api/v1/actions", 201, 0.05)

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/actions", "201")); got != 1 {
		t.Errorf("Expected 1 request, got %f", got)
	}
}

func TestSchedulerMetrics(t *testing.T) {
	SchedulerJobsRunTotal.Reset()

	RecordSchedulerJobRun("reconcile", "success")
	SetSchedulerLastRun("reconcile")
	ObserveSchedulerJobDuration("reconcile", 1.5)

	if got := testutil.ToFloat64(SchedulerJobsRunTotal.WithLabelValues("reconcile", "success")); got != 1 {
		t.Errorf("Expected 1 run, got %f", got)
	}
	if got := testutil.ToFloat64(SchedulerLastRunTimestamp.WithLabelValues("reconcile")); got <= 0 {
		t.Errorf("Expected last run timestamp to be set, got %f", got)
	}
}

func TestObserveHistograms(t *testing.T) {
	// Histograms cannot be read back with ToFloat64; ensure they don't panic.
	ObserveStatsSnapshot(0.01)
	RecordProjectMutation("create")
	RecordRateLimited("actions")
	RecordNotificationSent("level_up")
	RecordNotificationFailed("achievement")
}

func TestMetricsRegistration(t *testing.T) {
	// Verify all metrics are registered
	metrics := []prometheus.Collector{
		ActionsLoggedTotal,
		CoinsAwardedTotal,
		AchievementsUnlockedTotal,
		LevelUpsTotal,
		ProfilesByLevel,
		ProjectMutationsTotal,
		StatsSnapshotDurationSeconds,
		SocialFeedRequestsTotal,
		SocialAPIErrorsTotal,
		SocialAPILatencySeconds,
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		RateLimitedTotal,
		NotificationsSentTotal,
		NotificationsFailedTotal,
		SchedulerJobsRunTotal,
		SchedulerLastRunTimestamp,
		SchedulerJobDurationSeconds,
	}

	for i, metric := range metrics {
		if metric == nil {
			t.Errorf("Metric %d is nil", i)
		}
	}
}
