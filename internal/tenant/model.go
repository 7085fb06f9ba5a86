package tenant

import "time"

// Tenant is one client account with its own timezone and publishing cadence.
// DayPair/TimeSlot are nil until the slot allocator assigns them and then
// persist until an operator explicitly reassigns.
type Tenant struct {
	ID       uint64 `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Timezone string `gorm:"not null;default:''"` // IANA name; invalid values fall back at evaluation time

	Active       bool `gorm:"not null;default:true"`
	AutoSchedule bool `gorm:"not null;default:true"`

	DayPair  *string `gorm:"index"`
	TimeSlot *int

	PostsPerWeek    int `gorm:"not null;default:2"`
	LastScheduledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assigned reports whether the tenant already holds a scheduling slot.
func (t *Tenant) Assigned() bool {
	return t.DayPair != nil && t.TimeSlot != nil
}

// Location is a publish target area for a tenant. At most one location per
// tenant carries the headquarters flag (enforced by a partial unique index).
type Location struct {
	ID       uint64 `gorm:"primaryKey"`
	TenantID uint64 `gorm:"index;not null"`

	Name         string `gorm:"not null"`
	City         string
	State        string
	Neighborhood string

	Active       bool `gorm:"not null;default:true"`
	Headquarters bool `gorm:"not null;default:false"`

	LastUsedAt *time.Time `gorm:"index"`
	UsedCount  int        `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Template is a reusable content prompt with placeholder tokens, rotated per
// tenant so the same prompt is not reused until the pool is exhausted.
type Template struct {
	ID       uint64 `gorm:"primaryKey"`
	TenantID uint64 `gorm:"index;not null"`

	Body     string `gorm:"type:text;not null"`
	Active   bool   `gorm:"not null;default:true"`
	Priority int    `gorm:"not null;default:0"`

	UsedAt    *time.Time `gorm:"index"`
	UsedCount int        `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
