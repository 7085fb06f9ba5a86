package job

import (
	"context"

	"gorm.io/gorm"
)

// Repo wraps the status updates other components apply to jobs.
type Repo struct {
	DB *gorm.DB
}

// MarkFailed records a terminal (or retryable, via the scanner) failure.
func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusFailed,
			"last_error": errMsg,
		}).Error
}

// MarkReview parks the job for manual review with a reason.
func (r *Repo) MarkReview(ctx context.Context, id uint64, reason string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusReview,
			"last_error": reason,
		}).Error
}

// MarkScheduledForRetry resets the job for another pipeline run and burns one
// retry from its budget.
func (r *Repo) MarkScheduledForRetry(ctx context.Context, id uint64, reason string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      StatusScheduled,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  reason,
		}).Error
}

// Get loads one job.
func (r *Repo) Get(ctx context.Context, id uint64) (*Job, error) {
	var j Job
	if err := r.DB.WithContext(ctx).First(&j, id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}
