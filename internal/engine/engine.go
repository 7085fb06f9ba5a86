// Package engine orchestrates one evaluation batch: trigger evaluation, job
// creation, pipeline invocation, and the audit record around all of it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"cadence/internal/audit"
	"cadence/internal/job"
	"cadence/internal/pipeline"
	"cadence/internal/schedule"
	"cadence/internal/tenant"
)

// Outcome statuses for one tenant inside a batch.
const (
	OutcomeCreated = "created"
	OutcomeExists  = "exists"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Outcome is one tenant's result inside a batch.
type Outcome struct {
	TenantID uint64 `json:"tenant_id"`
	Status   string `json:"status"`
	JobID    uint64 `json:"job_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Report is the structured result of one batch, also persisted to the audit
// log.
type Report struct {
	Action   string    `json:"action"`
	Due      int       `json:"due"`
	Created  int       `json:"created"`
	Existing int       `json:"existing"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case OutcomeCreated:
		r.Created++
	case OutcomeExists:
		r.Existing++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// Engine runs evaluation batches. Due tenants are processed sequentially with
// a fixed inter-tenant delay as deliberate backpressure against rate-limited
// downstream publishing APIs.
type Engine struct {
	DB        *gorm.DB
	Evaluator schedule.Evaluator
	Factory   *job.Factory
	Repo      *job.Repo
	Invoker   pipeline.Invoker
	Audit     *audit.Recorder
	Log       zerolog.Logger

	limiter *rate.Limiter
}

// DefaultPace is the inter-tenant delay inside a batch.
const DefaultPace = 2 * time.Second

func New(db *gorm.DB, ev schedule.Evaluator, f *job.Factory, repo *job.Repo,
	inv pipeline.Invoker, rec *audit.Recorder, pace time.Duration, log zerolog.Logger) *Engine {
	if pace <= 0 {
		pace = DefaultPace
	}
	return &Engine{
		DB:        db,
		Evaluator: ev,
		Factory:   f,
		Repo:      repo,
		Invoker:   inv,
		Audit:     rec,
		Log:       log,
		limiter:   rate.NewLimiter(rate.Every(pace), 1),
	}
}

// RunDue evaluates all tenants against now and processes the due ones. Only
// a failure to list tenants aborts the batch; everything else degrades
// per-tenant.
func (e *Engine) RunDue(ctx context.Context, now time.Time) (*Report, error) {
	tenants, err := e.listActive(ctx)
	if err != nil {
		if e.Audit != nil {
			run := e.Audit.Begin(ctx, "scheduler_tick", nil)
			e.Audit.Finish(ctx, run, audit.RunStatusFailed, map[string]any{"error": err.Error()})
		}
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	due := e.Evaluator.DueNow(now, tenants)
	return e.runBatch(ctx, "scheduler_tick", due, now), nil
}

// ForceRun runs the pipeline for one tenant, bypassing the timezone gate.
func (e *Engine) ForceRun(ctx context.Context, tenantID uint64) (*Outcome, error) {
	var t tenant.Tenant
	if err := e.DB.WithContext(ctx).First(&t, tenantID).Error; err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, errors.New("tenant is not active")
	}

	rep := e.runBatch(ctx, "force_run", []tenant.Tenant{t}, time.Now())
	out := rep.Outcomes[0]
	return &out, nil
}

// ForceRunAll runs the pipeline for every eligible tenant, bypassing the
// timezone gate.
func (e *Engine) ForceRunAll(ctx context.Context) (*Report, error) {
	tenants, err := e.listActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	eligible := tenants[:0]
	for _, t := range tenants {
		if t.AutoSchedule {
			eligible = append(eligible, t)
		}
	}
	return e.runBatch(ctx, "force_run_all", eligible, time.Now()), nil
}

func (e *Engine) runBatch(ctx context.Context, action string, due []tenant.Tenant, now time.Time) *Report {
	ids := make([]int64, 0, len(due))
	for _, t := range due {
		ids = append(ids, int64(t.ID))
	}

	var run *audit.SchedulerRun
	if e.Audit != nil {
		run = e.Audit.Begin(ctx, action, ids)
	}

	rep := &Report{Action: action, Due: len(due), Outcomes: []Outcome{}}
	for i := range due {
		if err := e.limiter.Wait(ctx); err != nil {
			rep.add(Outcome{TenantID: due[i].ID, Status: OutcomeSkipped, Reason: "batch canceled"})
			continue
		}
		rep.add(e.processTenant(ctx, &due[i], now))
	}

	status := audit.RunStatusSuccess
	if rep.Failed > 0 {
		status = audit.RunStatusPartial
	}
	if e.Audit != nil {
		e.Audit.Finish(ctx, run, status, rep)
	}

	e.Log.Info().
		Str("action", action).
		Int("due", rep.Due).
		Int("created", rep.Created).
		Int("existing", rep.Existing).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Msg("batch done")
	return rep
}

// processTenant never lets one tenant's failure abort the batch: every error
// lands on the job row or in the outcome list.
func (e *Engine) processTenant(ctx context.Context, t *tenant.Tenant, now time.Time) Outcome {
	j, created, err := e.Factory.CreateIfAbsent(ctx, t, now)
	if errors.Is(err, job.ErrNoCombination) {
		return Outcome{TenantID: t.ID, Status: OutcomeSkipped, Reason: "no active templates or locations"}
	}
	if err != nil {
		e.Log.Error().Err(err).Uint64("tenant", t.ID).Msg("job creation failed")
		return Outcome{TenantID: t.ID, Status: OutcomeFailed, Reason: err.Error()}
	}
	if !created {
		return Outcome{TenantID: t.ID, Status: OutcomeExists, JobID: j.ID}
	}

	// Long-running, awaited synchronously; the pipeline sets the final
	// status itself on success.
	if err := e.Invoker.Run(ctx, j.ID); err != nil {
		if mErr := e.Repo.MarkFailed(ctx, j.ID, err.Error()); mErr != nil {
			e.Log.Error().Err(mErr).Uint64("job", j.ID).Msg("failure transition failed")
		}
		return Outcome{TenantID: t.ID, Status: OutcomeFailed, JobID: j.ID, Reason: err.Error()}
	}
	return Outcome{TenantID: t.ID, Status: OutcomeCreated, JobID: j.ID}
}

func (e *Engine) listActive(ctx context.Context) ([]tenant.Tenant, error) {
	var tenants []tenant.Tenant
	err := e.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("id asc").
		Find(&tenants).Error
	return tenants, err
}
