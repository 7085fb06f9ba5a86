package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cadence/internal/tenant"
)

// DefaultDayCapacity caps how many tenants may fire on a single weekday.
const DefaultDayCapacity = 10

// Assignment is one tenant's current (day-pair, time-slot) pairing, the unit
// the planner balances over.
type Assignment struct {
	TenantID uint64
	Pair     DayPair
	Slot     TimeSlot
}

// Planner decides slots for new tenants from a snapshot of everyone else's
// assignment. It holds no storage so the balancing rules test in isolation.
type Planner struct {
	DayCapacity int
}

// Plan picks the least-loaded day pair with weekday headroom, then a slot in
// that pair's half with as few cross-pair collisions as possible.
func (p Planner) Plan(existing []Assignment) (DayPair, TimeSlot) {
	capPerDay := p.DayCapacity
	if capPerDay <= 0 {
		capPerDay = DefaultDayCapacity
	}

	dayLoad := map[time.Weekday]int{}
	pairLoad := map[DayPair]int{}
	for _, a := range existing {
		d1, d2 := a.Pair.Weekdays()
		dayLoad[d1]++
		dayLoad[d2]++
		pairLoad[a.Pair]++
	}

	pair := DefaultPair
	best := -1
	for _, c := range AllPairs {
		d1, d2 := c.Weekdays()
		if dayLoad[d1] >= capPerDay || dayLoad[d2] >= capPerDay {
			continue
		}
		if best == -1 || pairLoad[c] < best {
			pair, best = c, pairLoad[c]
		}
	}

	return pair, p.pickSlot(pair, existing)
}

// pickSlot prefers a slot nobody on an overlapping pair already fires at.
// Different pairs can share a weekday (MON_WED and WED_FRI both touch
// Wednesday), so collisions are counted across every pair touching ours.
func (p Planner) pickSlot(pair DayPair, existing []Assignment) TimeSlot {
	d1, d2 := pair.Weekdays()

	slots := pair.Half().Slots()
	bestSlot := slots[0]
	bestCollisions := -1
	for _, s := range slots {
		collisions := 0
		for _, a := range existing {
			if a.Slot != s {
				continue
			}
			if a.Pair.Contains(d1) || a.Pair.Contains(d2) {
				collisions++
			}
		}
		if collisions == 0 {
			return s
		}
		if bestCollisions == -1 || collisions < bestCollisions {
			bestSlot, bestCollisions = s, collisions
		}
	}
	return bestSlot
}

// Allocator persists planner decisions onto tenant rows.
type Allocator struct {
	DB      *gorm.DB
	Planner Planner
	Log     zerolog.Logger
}

// Assign gives the tenant a (day-pair, time-slot) pairing, returning the
// existing one unchanged when the tenant is already assigned.
func (al *Allocator) Assign(ctx context.Context, tenantID uint64) (DayPair, TimeSlot, error) {
	var t tenant.Tenant
	if err := al.DB.WithContext(ctx).First(&t, tenantID).Error; err != nil {
		return "", 0, err
	}

	if t.Assigned() {
		if pair, err := ParsePair(*t.DayPair); err == nil && TimeSlot(*t.TimeSlot).Valid() {
			return pair, TimeSlot(*t.TimeSlot), nil
		}
		// malformed stored value; fall through and reassign
	}

	snapshot, err := al.Snapshot(ctx, tenantID)
	if err != nil {
		return "", 0, err
	}

	pair, slot := al.Planner.Plan(snapshot)

	pairStr, slotInt := string(pair), int(slot)
	err = al.DB.WithContext(ctx).Model(&tenant.Tenant{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{"day_pair": pairStr, "time_slot": slotInt}).Error
	if err != nil {
		return "", 0, err
	}

	al.Log.Info().
		Uint64("tenant", t.ID).
		Str("pair", string(pair)).
		Int("slot", int(slot)).
		Msg("slot assigned")
	return pair, slot, nil
}

// Snapshot loads every other tenant's assignment. Rows with unparseable
// stored values are skipped: they carry no load until reassigned.
func (al *Allocator) Snapshot(ctx context.Context, excludeID uint64) ([]Assignment, error) {
	var rows []tenant.Tenant
	err := al.DB.WithContext(ctx).
		Where("day_pair IS NOT NULL AND time_slot IS NOT NULL AND id <> ?", excludeID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(rows))
	for _, r := range rows {
		pair, err := ParsePair(*r.DayPair)
		if err != nil || !TimeSlot(*r.TimeSlot).Valid() {
			continue
		}
		out = append(out, Assignment{TenantID: r.ID, Pair: pair, Slot: TimeSlot(*r.TimeSlot)})
	}
	return out, nil
}
