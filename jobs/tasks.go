package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueSweep moves sent invoices past their due date to overdue.
	TaskInvoiceOverdueSweep = "invoice:overdue_sweep"
)

// OverdueSweepPayload optionally pins the reference day. Zero means today.
type OverdueSweepPayload struct {
	AsOf string `json:"asOf,omitempty"`
}

// NewOverdueSweepTask constructs an Asynq task. A zero asOf sweeps against
// the day the task runs.
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	payload := OverdueSweepPayload{}
	if !asOf.IsZero() {
		payload.AsOf = asOf.UTC().Format(time.DateOnly)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueSweep, data, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}
