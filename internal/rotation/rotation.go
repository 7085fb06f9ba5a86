// Package rotation picks the next (template, location) combination for a
// tenant. Templates and locations rotate as two independent least-recently-
// used queues keyed on their used-at markers, so the pool is (approximately)
// exhausted before anything repeats.
package rotation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cadence/internal/tenant"
)

// NextTemplate picks the rotation's next template: a never-used active one
// (ascending priority, then lowest id), else the one with the oldest used-at
// (ties broken by priority). Returns nil when no active template exists.
func NextTemplate(candidates []tenant.Template) *tenant.Template {
	var fresh, stale *tenant.Template
	for i := range candidates {
		c := &candidates[i]
		if !c.Active {
			continue
		}
		if c.UsedAt == nil {
			if fresh == nil || c.Priority < fresh.Priority ||
				(c.Priority == fresh.Priority && c.ID < fresh.ID) {
				fresh = c
			}
			continue
		}
		if stale == nil || c.UsedAt.Before(*stale.UsedAt) ||
			(c.UsedAt.Equal(*stale.UsedAt) && c.Priority < stale.Priority) {
			stale = c
		}
	}
	if fresh != nil {
		return fresh
	}
	return stale
}

// NextLocation mirrors NextTemplate for locations: never-used active first
// (headquarters breaks ties, then lowest id), else least-recently-used.
func NextLocation(candidates []tenant.Location) *tenant.Location {
	var fresh, stale *tenant.Location
	for i := range candidates {
		c := &candidates[i]
		if !c.Active {
			continue
		}
		if c.LastUsedAt == nil {
			if fresh == nil ||
				(c.Headquarters && !fresh.Headquarters) ||
				(c.Headquarters == fresh.Headquarters && c.ID < fresh.ID) {
				fresh = c
			}
			continue
		}
		if stale == nil || c.LastUsedAt.Before(*stale.LastUsedAt) ||
			(c.LastUsedAt.Equal(*stale.LastUsedAt) && c.ID < stale.ID) {
			stale = c
		}
	}
	if fresh != nil {
		return fresh
	}
	return stale
}

// Next loads the tenant's active pools and picks one combination. Both
// returns are nil (without error) when the tenant has nothing to rotate.
func Next(ctx context.Context, db *gorm.DB, tenantID uint64) (*tenant.Template, *tenant.Location, error) {
	var tpls []tenant.Template
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&tpls).Error
	if err != nil {
		return nil, nil, err
	}

	var locs []tenant.Location
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&locs).Error
	if err != nil {
		return nil, nil, err
	}

	tpl := NextTemplate(tpls)
	loc := NextLocation(locs)
	if tpl == nil || loc == nil {
		return nil, nil, nil
	}
	return tpl, loc, nil
}

// MarkUsed advances both rotation cursors. Call only after the job row is
// durably committed, so a failed creation never consumes a rotation turn.
func MarkUsed(ctx context.Context, db *gorm.DB, tpl *tenant.Template, loc *tenant.Location) error {
	now := time.Now().UTC()

	err := db.WithContext(ctx).Model(&tenant.Template{}).
		Where("id = ?", tpl.ID).
		Updates(map[string]any{
			"used_at":    now,
			"used_count": gorm.Expr("used_count + 1"),
		}).Error
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Model(&tenant.Location{}).
		Where("id = ?", loc.ID).
		Updates(map[string]any{
			"last_used_at": now,
			"used_count":   gorm.Expr("used_count + 1"),
		}).Error
}
