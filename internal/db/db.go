package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cadence/internal/audit"
	"cadence/internal/auth"
	"cadence/internal/job"
	"cadence/internal/tenant"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&tenant.Tenant{},
		&tenant.Location{},
		&tenant.Template{},
		&job.Job{},
		&job.Asset{},
		&audit.SchedulerRun{},
		&auth.Operator{},
	); err != nil {
		return err
	}

	// Exactly-once backstop: at most one non-FAILED job per tenant per
	// tenant-local day, whatever races the factory's recheck loses.
	if err := gdb.Exec(`
create unique index if not exists uq_jobs_tenant_day_live
on jobs(tenant_id, scheduled_on)
where status <> 'FAILED';
`).Error; err != nil {
		return err
	}

	// One headquarters location per tenant.
	if err := gdb.Exec(`
create unique index if not exists uq_locations_tenant_hq
on locations(tenant_id)
where headquarters;
`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_jobs_stuck on jobs(status, updated_at);`,
		`create index if not exists idx_assets_stuck on assets(status, updated_at);`,
		`create index if not exists idx_templates_rotation on templates(tenant_id, active, used_at);`,
		`create index if not exists idx_locations_rotation on locations(tenant_id, active, last_used_at);`,
		`create index if not exists idx_runs_action_started on scheduler_runs(action, started_at desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
