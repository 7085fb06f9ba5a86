// Package audit appends one record per scheduler run. Records are write-only
// from the core's perspective; only the completion fields are filled in after
// the initial insert.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL"
	RunStatusFailed  = "FAILED"
)

// SchedulerRun is one append-only audit row for a scheduler or recovery run.
type SchedulerRun struct {
	ID     string `gorm:"primaryKey;type:uuid"`
	Action string `gorm:"index;not null"`
	Status string `gorm:"not null;default:'RUNNING'"`

	StartedAt  time.Time `gorm:"not null"`
	FinishedAt *time.Time
	DurationMS *int64

	// TenantIDs is the batch's due set at start time.
	TenantIDs pq.Int64Array `gorm:"type:bigint[]"`

	// Result holds the structured per-tenant outcome list.
	Result json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	CreatedAt time.Time
}

// Recorder writes audit rows. Failures are logged and swallowed: audit must
// never take a batch down.
type Recorder struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// Begin inserts the run row before any tenant is processed.
func (r *Recorder) Begin(ctx context.Context, action string, tenantIDs []int64) *SchedulerRun {
	run := &SchedulerRun{
		ID:        uuid.NewString(),
		Action:    action,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
		TenantIDs: tenantIDs,
	}
	if err := r.DB.WithContext(ctx).Create(run).Error; err != nil {
		r.Log.Error().Err(err).Str("action", action).Msg("audit insert failed")
	}
	return run
}

// Finish fills in the completion fields exactly once.
func (r *Recorder) Finish(ctx context.Context, run *SchedulerRun, status string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(`{}`)
	}
	now := time.Now().UTC()
	dur := now.Sub(run.StartedAt).Milliseconds()

	err = r.DB.WithContext(ctx).Model(&SchedulerRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":      status,
			"finished_at": now,
			"duration_ms": dur,
			"result":      json.RawMessage(raw),
		}).Error
	if err != nil {
		r.Log.Error().Err(err).Str("run", run.ID).Msg("audit completion failed")
	}
}
