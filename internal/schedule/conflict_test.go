package schedule

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cadence/internal/tenant"
)

func TestConflictsAcrossSharedWeekday(t *testing.T) {
	t.Parallel()

	// MON_WED and WED_FRI both touch Wednesday at slot 0; TUE_THU does not
	// overlap either of them.
	assignments := []Assignment{
		{TenantID: 1, Pair: MonWed, Slot: 0},
		{TenantID: 2, Pair: WedFri, Slot: 0},
		{TenantID: 3, Pair: TueThu, Slot: 5},
	}

	groups := Conflicts(assignments)
	require.Len(t, groups, 1)
	assert.Equal(t, Key{time.Wednesday, 0}, groups[0].Key)
	assert.Equal(t, []uint64{1, 2}, groups[0].TenantIDs)
}

func TestConflictsSamePair(t *testing.T) {
	t.Parallel()

	assignments := []Assignment{
		{TenantID: 7, Pair: TueThu, Slot: 5},
		{TenantID: 9, Pair: TueThu, Slot: 5},
	}

	groups := Conflicts(assignments)
	// Both member weekdays collide.
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.Equal(t, []uint64{7, 9}, g.TenantIDs)
	}
}

func TestResolveAllLeavesNoConflicts(t *testing.T) {
	t.Parallel()

	gdb := testDB(t)
	seedAssigned(t, gdb, 1, MonWed, 0)
	seedAssigned(t, gdb, 2, WedFri, 0)
	seedAssigned(t, gdb, 3, MonThu, 0)

	alloc := &Allocator{DB: gdb, Planner: Planner{}, Log: zerolog.Nop()}
	det := &Detector{DB: gdb, Allocator: alloc, Log: zerolog.Nop()}

	before, err := det.Detect(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, before)

	rep, err := det.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Reassigned)
	// Tenant 1 is first in every group it occupies and keeps its slot.
	assert.NotContains(t, rep.Reassigned, uint64(1))

	after, err := det.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, after)

	var t1 tenant.Tenant
	require.NoError(t, gdb.First(&t1, 1).Error)
	require.True(t, t1.Assigned())
	assert.Equal(t, string(MonWed), *t1.DayPair)
	assert.Equal(t, 0, *t1.TimeSlot)
}

func TestAllocatorAssignIsIdempotent(t *testing.T) {
	t.Parallel()

	gdb := testDB(t)
	seedAssigned(t, gdb, 1, TueThu, 7)

	alloc := &Allocator{DB: gdb, Planner: Planner{}, Log: zerolog.Nop()}
	pair, slot, err := alloc.Assign(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, TueThu, pair)
	assert.Equal(t, TimeSlot(7), slot)
}

func TestAllocatorAssignsUnassignedTenant(t *testing.T) {
	t.Parallel()

	gdb := testDB(t)
	require.NoError(t, gdb.Create(&tenant.Tenant{ID: 1, Name: "acme", Active: true, AutoSchedule: true}).Error)

	alloc := &Allocator{DB: gdb, Planner: Planner{}, Log: zerolog.Nop()}
	pair, slot, err := alloc.Assign(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, pair.Valid())
	assert.True(t, slot.Valid())
	assert.Equal(t, pair.Half(), slot.Half())

	var row tenant.Tenant
	require.NoError(t, gdb.First(&row, 1).Error)
	require.True(t, row.Assigned())
	assert.Equal(t, string(pair), *row.DayPair)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&tenant.Tenant{}))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func seedAssigned(t *testing.T, gdb *gorm.DB, id uint64, pair DayPair, slot TimeSlot) {
	t.Helper()

	p, s := string(pair), int(slot)
	require.NoError(t, gdb.Create(&tenant.Tenant{
		ID:           id,
		Name:         fmt.Sprintf("tenant-%d", id),
		Active:       true,
		AutoSchedule: true,
		DayPair:      &p,
		TimeSlot:     &s,
	}).Error)
}
