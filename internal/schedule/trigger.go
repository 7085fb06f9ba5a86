package schedule

import (
	"strings"
	"time"

	"cadence/internal/tenant"
)

// Evaluator decides which tenants' local wall clock matches their assigned
// slot at a given instant. It runs on every hourly tick; because the slot
// hours are pairwise distinct, a tenant is due in exactly one tick per
// scheduled day.
type Evaluator struct {
	// Fallback is used when a tenant carries an empty or unparseable zone
	// name, so one bad row never stops evaluation for the rest.
	Fallback *time.Location
}

// DueNow returns the tenants whose local hour equals their slot's table hour
// on one of their pair's weekdays. Tenants that are inactive, opted out, or
// unassigned are skipped.
func (e Evaluator) DueNow(now time.Time, tenants []tenant.Tenant) []tenant.Tenant {
	var due []tenant.Tenant
	for _, t := range tenants {
		if !t.Active || !t.AutoSchedule || !t.Assigned() {
			continue
		}
		pair, err := ParsePair(*t.DayPair)
		if err != nil {
			continue
		}
		slot := TimeSlot(*t.TimeSlot)
		if !slot.Valid() {
			continue
		}

		local := now.In(e.Location(t.Timezone))
		if local.Hour() == slot.Hour() && pair.Contains(local.Weekday()) {
			due = append(due, t)
		}
	}
	return due
}

// Location resolves an IANA zone name, falling back rather than failing.
func (e Evaluator) Location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if e.Fallback != nil {
		return e.Fallback
	}
	return time.UTC
}

// LocalNow converts an instant to the tenant's wall clock.
func (e Evaluator) LocalNow(now time.Time, t tenant.Tenant) time.Time {
	return now.In(e.Location(t.Timezone))
}

// LocalDay formats the tenant-local calendar day, the granularity at which
// job creation is deduplicated.
func (e Evaluator) LocalDay(now time.Time, t tenant.Tenant) string {
	return e.LocalNow(now, t).Format("2006-01-02")
}
