package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity checks that every company's ledger balances.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskReportWarmup pre-builds cached reports after the nightly close.
	TaskReportWarmup = "reports:warmup"
)

// GLIntegrityPayload scopes an integrity run. A nil CompanyID checks every
// company with ledger activity; an empty AsOf means today.
type GLIntegrityPayload struct {
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	AsOf      string     `json:"as_of,omitempty"`
}

// ReportWarmupPayload scopes a cache warmup run.
type ReportWarmupPayload struct {
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

// NewGLIntegrityTask constructs an Asynq task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// NewReportWarmupTask constructs an Asynq task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data, asynq.MaxRetry(1), asynq.Timeout(5*time.Minute)), nil
}

func (p GLIntegrityPayload) asOf(now time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return now, nil
	}
	d, err := time.Parse(time.DateOnly, p.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("gl integrity: as_of %q: %w", p.AsOf, err)
	}
	return d, nil
}
