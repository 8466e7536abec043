package jobs

import (
	"context"
	"fmt"

	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/monitoring"
	"github.com/softwarepar/backend/internal/queue"
	"go.uber.org/zap"
)

const (
	// ReconcileEarningsJobType is the job type for the nightly earnings check
	ReconcileEarningsJobType queue.JobType = "reconcile_partner_earnings"

	// reconciliationTime is when the check runs, UTC
	reconciliationTime = "03:00"
)

// DriftReporter finds partners whose earnings disagree with their paid referrals
type DriftReporter interface {
	EarningsDrift(ctx context.Context) ([]models.EarningsDrift, error)
}

// EarningsReconciliationJob compares partner accumulators with settled commissions.
// It only reports; correcting a ledger is an admin decision.
type EarningsReconciliationJob struct {
	reporter DriftReporter
	logger   *zap.Logger
}

// NewEarningsReconciliationJob creates a new reconciliation job
func NewEarningsReconciliationJob(reporter DriftReporter, logger *zap.Logger) *EarningsReconciliationJob {
	return &EarningsReconciliationJob{reporter: reporter, logger: logger}
}

// Handle runs one reconciliation pass
func (j *EarningsReconciliationJob) Handle(ctx context.Context, job queue.Job) (interface{}, error) {
	drift, err := j.reporter.EarningsDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile earnings: %w", err)
	}

	monitoring.EarningsDriftPartners.Set(float64(len(drift)))
	for _, d := range drift {
		j.logger.Warn("partner earnings drift",
			zap.Uint("partner_id", d.PartnerID),
			zap.String("recorded", d.Recorded.String()),
			zap.String("settled", d.Settled.String()),
			zap.String("difference", d.Difference.String()),
		)
	}
	j.logger.Info("earnings reconciliation finished", zap.Int("drifted_partners", len(drift)))

	return map[string]interface{}{"drifted_partners": len(drift)}, nil
}
