package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DayPair names the two non-consecutive weekdays a tenant publishes on.
type DayPair string

const (
	MonWed DayPair = "MON_WED"
	MonThu DayPair = "MON_THU"
	TueThu DayPair = "TUE_THU"
	TueFri DayPair = "TUE_FRI"
	WedFri DayPair = "WED_FRI"
	ThuSat DayPair = "THU_SAT"
)

// DefaultPair is used when no pair has remaining weekday capacity.
const DefaultPair = TueThu

// AllPairs is in allocation preference order; load ties resolve to the
// earliest entry.
var AllPairs = []DayPair{MonWed, MonThu, TueThu, TueFri, WedFri, ThuSat}

// Weekdays returns the pair's two member weekdays.
func (p DayPair) Weekdays() (time.Weekday, time.Weekday) {
	switch p {
	case MonWed:
		return time.Monday, time.Wednesday
	case MonThu:
		return time.Monday, time.Thursday
	case TueThu:
		return time.Tuesday, time.Thursday
	case TueFri:
		return time.Tuesday, time.Friday
	case WedFri:
		return time.Wednesday, time.Friday
	case ThuSat:
		return time.Thursday, time.Saturday
	}
	return DefaultPair.Weekdays()
}

// Contains reports whether d is one of the pair's weekdays.
func (p DayPair) Contains(d time.Weekday) bool {
	a, b := p.Weekdays()
	return d == a || d == b
}

// Half returns the slot half a pair may be allocated into. Pairs whose first
// weekday is odd-numbered (Mon=1, Wed=3) get the morning half; even-numbered
// first weekdays (Tue=2, Thu=4) get the evening half.
func (p DayPair) Half() Half {
	first, _ := p.Weekdays()
	if int(first)%2 == 1 {
		return Morning
	}
	return Evening
}

// Valid reports whether p is one of the six known pairs.
func (p DayPair) Valid() bool {
	for _, c := range AllPairs {
		if p == c {
			return true
		}
	}
	return false
}

// ParsePair parses a stored day-pair value.
func ParsePair(s string) (DayPair, error) {
	p := DayPair(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown day pair %q", s)
	}
	return p, nil
}

// Half splits the slot table into a morning and an evening block.
type Half int

const (
	Morning Half = iota
	Evening
)

// Slots returns the slot indexes belonging to the half.
func (h Half) Slots() []TimeSlot {
	if h == Morning {
		return []TimeSlot{0, 1, 2, 3, 4}
	}
	return []TimeSlot{5, 6, 7, 8, 9}
}

// TimeSlot is an index into the fixed table of local publish hours.
type TimeSlot int

// slotHours is the fixed local-hour table. The hours are pairwise distinct so
// a tenant matches exactly one hourly tick per scheduled day.
var slotHours = [10]int{7, 8, 9, 10, 11, 13, 14, 15, 16, 17}

// Valid reports whether s indexes the slot table.
func (s TimeSlot) Valid() bool { return s >= 0 && s < TimeSlot(len(slotHours)) }

// Hour returns the slot's local publish hour.
func (s TimeSlot) Hour() int { return slotHours[s] }

// Half returns which block of the table the slot belongs to.
func (s TimeSlot) Half() Half {
	if s <= 4 {
		return Morning
	}
	return Evening
}

func (s TimeSlot) String() string { return fmt.Sprintf("slot %d (%02d:00)", int(s), s.Hour()) }
