package scheduler

import (
	"context"

	"github.com/hundredk/challenge-tracker/internal/mattermost"
)

// report posts the run summary when something worth reading happened.
func (s *Service) report(ctx context.Context, summary *mattermost.ReconcileSummary) {
	if s.reporter == nil || !worthReporting(summary) {
		return
	}
	if err := s.reporter.SendReconcileSummary(ctx, *summary); err != nil {
		s.log.Error().Err(err).Msg("Failed to send reconcile summary")
	}
}

func worthReporting(summary *mattermost.ReconcileSummary) bool {
	return summary.LevelChanges > 0 || summary.Unlocked > 0 || summary.Failed > 0
}
