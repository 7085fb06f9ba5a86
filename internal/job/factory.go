package job

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cadence/internal/rotation"
	"cadence/internal/schedule"
	"cadence/internal/tenant"
)

// ErrNoCombination means the tenant has no active template or location to
// rotate. Callers record it as a per-tenant skip, never a batch failure.
var ErrNoCombination = errors.New("no combination available")

// Factory creates at most one job per tenant per tenant-local calendar day.
type Factory struct {
	DB    *gorm.DB
	Zones schedule.Evaluator
	Log   zerolog.Logger
}

// CreateIfAbsent creates the tenant's job for the trigger instant's local day
// exactly once. A repeated call inside the same tenant-local day returns the
// existing job with created=false; duplicate ticks and retried triggers are
// benign no-ops.
//
// The existence recheck and insert run in one transaction. Rotation cursors
// and the tenant's last-scheduled marker advance only after commit, so a
// failed creation never consumes a rotation turn.
func (f *Factory) CreateIfAbsent(ctx context.Context, t *tenant.Tenant, now time.Time) (*Job, bool, error) {
	day := f.Zones.LocalDay(now, *t)

	var (
		tpl     *tenant.Template
		loc     *tenant.Location
		out     *Job
		madeNew bool
	)

	err := f.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Job
		err := tx.
			Where("tenant_id = ? AND scheduled_on = ? AND status <> ?", t.ID, day, StatusFailed).
			First(&existing).Error
		if err == nil {
			out = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		tpl, loc, err = rotation.Next(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if tpl == nil || loc == nil {
			return ErrNoCombination
		}

		j := Job{
			TenantID:    t.ID,
			TemplateID:  tpl.ID,
			LocationID:  loc.ID,
			Content:     rotation.Render(tpl.Body, *loc),
			ScheduledOn: day,
			ScheduledAt: now.UTC(),
			Status:      StatusGenerating,
		}
		if err := tx.Create(&j).Error; err != nil {
			return err
		}
		out = &j
		madeNew = true
		return nil
	})

	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race against a concurrent trigger; the winner's
			// row is today's job.
			var existing Job
			err2 := f.DB.WithContext(ctx).
				Where("tenant_id = ? AND scheduled_on = ? AND status <> ?", t.ID, day, StatusFailed).
				First(&existing).Error
			if err2 == nil {
				return &existing, false, nil
			}
		}
		return nil, false, err
	}
	if !madeNew {
		return out, false, nil
	}

	if err := rotation.MarkUsed(ctx, f.DB, tpl, loc); err != nil {
		f.Log.Warn().Err(err).Uint64("job", out.ID).Msg("rotation cursor update failed")
	}
	err = f.DB.WithContext(ctx).Model(&tenant.Tenant{}).
		Where("id = ?", t.ID).
		Update("last_scheduled_at", now.UTC()).Error
	if err != nil {
		f.Log.Warn().Err(err).Uint64("tenant", t.ID).Msg("last-scheduled update failed")
	}

	f.Log.Info().
		Uint64("tenant", t.ID).
		Uint64("job", out.ID).
		Str("day", day).
		Msg("job created")
	return out, true, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
