package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/queue"
	"github.com/softwarepar/backend/internal/services/referral"
	"go.uber.org/zap"
)

const (
	// SettleCommissionJobType is the job type for paying out a converted referral
	SettleCommissionJobType queue.JobType = "settle_referral_commission"
)

// SettleCommissionPayload represents the payload for a settlement job
type SettleCommissionPayload struct {
	ReferralID uint `json:"referral_id"`
}

// Settler moves referrals to paid
type Settler interface {
	GetReferral(ctx context.Context, referralID uint) (*models.Referral, error)
	Settle(ctx context.Context, referralID uint) (*models.Referral, error)
}

// CommissionSettlementJob settles referral commissions in the background
type CommissionSettlementJob struct {
	queue   queue.Enqueuer
	settler Settler
	logger  *zap.Logger
}

// NewCommissionSettlementJob creates a new settlement job
func NewCommissionSettlementJob(q queue.Enqueuer, settler Settler, logger *zap.Logger) *CommissionSettlementJob {
	return &CommissionSettlementJob{queue: q, settler: settler, logger: logger}
}

// ScheduleSettlement enqueues settlement of a converted referral
func (j *CommissionSettlementJob) ScheduleSettlement(ctx context.Context, referralID uint) error {
	jobID, err := j.queue.Enqueue(ctx, SettleCommissionJobType, SettleCommissionPayload{ReferralID: referralID})
	if err != nil {
		return err
	}
	j.logger.Info("commission settlement scheduled", zap.Uint("referral_id", referralID), zap.String("job_id", jobID))
	return nil
}

// Handle settles the referral named in the job payload. Already paid referrals are skipped.
func (j *CommissionSettlementJob) Handle(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload SettleCommissionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement payload: %w", err)
	}

	current, err := j.settler.GetReferral(ctx, payload.ReferralID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	if current.Status == models.ReferralStatusPaid {
		j.logger.Info("referral already settled", zap.Uint("referral_id", current.ID))
		return map[string]interface{}{"referral_id": current.ID, "status": "already_paid"}, nil
	}

	settled, err := j.settler.Settle(ctx, payload.ReferralID)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidTransition) {
			// Another worker or an admin may have settled it in the meantime.
			if latest, getErr := j.settler.GetReferral(ctx, payload.ReferralID); getErr == nil && latest.Status == models.ReferralStatusPaid {
				return map[string]interface{}{"referral_id": latest.ID, "status": "already_paid"}, nil
			}
		}
		return nil, fmt.Errorf("failed to settle referral %d: %w", payload.ReferralID, err)
	}

	return map[string]interface{}{
		"referral_id": settled.ID,
		"status":      string(settled.Status),
		"commission":  settled.CommissionAmount.String(),
	}, nil
}
