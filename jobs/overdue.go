package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/invoicer/internal/jobs"
)

const overdueSweepJob = "invoice_overdue_sweep"

// OverdueMarker flips eligible invoices to overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueSweepJob handles TaskInvoiceOverdueSweep.
type OverdueSweepJob struct {
	Service OverdueMarker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueSweepJob initialises the sweep handler.
func NewOverdueSweepJob(service OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle runs one sweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.logger().Warn("overdue sweep payload rejected", slog.Any("error", err))
			return asynq.SkipRetry
		}
	}
	asOf := j.now()
	if payload.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, payload.AsOf)
		if err != nil {
			j.logger().Warn("overdue sweep date rejected", slog.String("as_of", payload.AsOf), slog.Any("error", err))
			return asynq.SkipRetry
		}
		asOf = parsed
	}

	tracker := j.Metrics.Track(overdueSweepJob)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", asOf.Format(time.DateOnly)))
	marked, err := j.Service.MarkOverdue(ctx, asOf)
	if err != nil {
		logger.Error("overdue sweep failed", slog.Int("marked", marked), slog.Any("error", err))
		return err
	}
	logger.Info("overdue sweep complete", slog.Int("marked", marked))
	return nil
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
