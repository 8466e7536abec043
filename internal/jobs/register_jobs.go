package jobs

import (
	"github.com/softwarepar/backend/internal/queue"
	"go.uber.org/zap"
)

// JobQueue is the queue surface the jobs need
type JobQueue interface {
	queue.Enqueuer
	RegisterHandler(jobType queue.JobType, handler queue.JobHandler)
}

// RegisterAllJobHandlers registers all job handlers with the queue.
// The returned settlement job is what payment processing schedules through.
func RegisterAllJobHandlers(q JobQueue, settler Settler, reporter DriftReporter, logger *zap.Logger) *CommissionSettlementJob {
	settlement := NewCommissionSettlementJob(q, settler, logger)
	q.RegisterHandler(SettleCommissionJobType, settlement.Handle)

	reconciliation := NewEarningsReconciliationJob(reporter, logger)
	q.RegisterHandler(ReconcileEarningsJobType, reconciliation.Handle)

	return settlement
}

// Scheduler accepts recurring jobs
type Scheduler interface {
	AddRecurring(rj queue.RecurringJob) error
}

// ScheduleRecurringJobs schedules all recurring jobs
func ScheduleRecurringJobs(s Scheduler) error {
	return s.AddRecurring(queue.RecurringJob{
		Name:    "partner-earnings-reconciliation",
		Type:    ReconcileEarningsJobType,
		Payload: map[string]interface{}{},
		At:      reconciliationTime,
	})
}
