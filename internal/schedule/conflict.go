package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cadence/internal/tenant"
)

// Key is one (weekday, slot) firing cell. Every assignment occupies two keys,
// one per member weekday.
type Key struct {
	Day  time.Weekday
	Slot TimeSlot
}

// ConflictGroup lists the tenants sharing one firing cell. The first tenant
// keeps its assignment during resolution; the rest are reassigned.
type ConflictGroup struct {
	Key       Key
	TenantIDs []uint64
}

// Conflicts finds all firing cells occupied by more than one tenant.
func Conflicts(assignments []Assignment) []ConflictGroup {
	byKey := map[Key][]uint64{}
	for _, a := range assignments {
		d1, d2 := a.Pair.Weekdays()
		byKey[Key{d1, a.Slot}] = append(byKey[Key{d1, a.Slot}], a.TenantID)
		byKey[Key{d2, a.Slot}] = append(byKey[Key{d2, a.Slot}], a.TenantID)
	}

	var groups []ConflictGroup
	for k, ids := range byKey {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		groups = append(groups, ConflictGroup{Key: k, TenantIDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Key.Day != groups[j].Key.Day {
			return groups[i].Key.Day < groups[j].Key.Day
		}
		return groups[i].Key.Slot < groups[j].Key.Slot
	})
	return groups
}

// ResolveReport summarizes one resolution pass.
type ResolveReport struct {
	Groups     []ConflictGroup `json:"groups"`
	Reassigned []uint64        `json:"reassigned"`
}

// Detector finds and repairs slot collisions. Resolution is an explicit
// operator action, never part of the trigger path, so day-to-day assignments
// stay stable.
type Detector struct {
	DB        *gorm.DB
	Allocator *Allocator
	Log       zerolog.Logger
}

// Detect returns all current conflict groups.
func (d *Detector) Detect(ctx context.Context) ([]ConflictGroup, error) {
	snapshot, err := d.Allocator.Snapshot(ctx, 0)
	if err != nil {
		return nil, err
	}
	return Conflicts(snapshot), nil
}

// ResolveAll keeps the first tenant of each group, clears the assignments of
// the rest (removing them from load counts), then re-runs the allocator for
// each cleared tenant.
func (d *Detector) ResolveAll(ctx context.Context) (*ResolveReport, error) {
	groups, err := d.Detect(ctx)
	if err != nil {
		return nil, err
	}
	rep := &ResolveReport{Groups: groups}

	// A tenant can sit in two groups (one per weekday); clear it once.
	toClear := map[uint64]struct{}{}
	for _, g := range groups {
		for _, id := range g.TenantIDs[1:] {
			toClear[id] = struct{}{}
		}
	}

	cleared := make([]uint64, 0, len(toClear))
	for id := range toClear {
		cleared = append(cleared, id)
	}
	sort.Slice(cleared, func(i, j int) bool { return cleared[i] < cleared[j] })

	for _, id := range cleared {
		err := d.DB.WithContext(ctx).Model(&tenant.Tenant{}).
			Where("id = ?", id).
			Updates(map[string]any{"day_pair": nil, "time_slot": nil}).Error
		if err != nil {
			return rep, err
		}
	}

	for _, id := range cleared {
		if _, _, err := d.Allocator.Assign(ctx, id); err != nil {
			d.Log.Error().Err(err).Uint64("tenant", id).Msg("reassignment failed")
			continue
		}
		rep.Reassigned = append(rep.Reassigned, id)
	}
	return rep, nil
}
