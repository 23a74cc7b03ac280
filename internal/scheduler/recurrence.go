package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/call-scheduler/internal/schedule"
)

// Recurrence decides what the date part of time_of_call means.
type Recurrence string

const (
	// RecurDaily drops the date and fires every day at the row's HH:MM.
	RecurDaily Recurrence = "daily"
	// RecurOnce fires a single time at the row's date and time.
	RecurOnce Recurrence = "once"
	// RecurBoth fires at the row's date and time, then daily after it.
	RecurBoth Recurrence = "both"
)

// ParseRecurrence accepts daily, once or both, case-insensitively; empty means daily.
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RecurDaily, nil
	case RecurDaily, RecurOnce, RecurBoth:
		return r, nil
	default:
		return "", fmt.Errorf("invalid recurrence %q (want daily, once or both)", s)
	}
}

// Daily returns a schedule firing once every day at hour:minute in loc.
func Daily(hour, minute int, loc *time.Location) (cron.Schedule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.Local
	}
	return dailySchedule{hour: hour, minute: minute, loc: loc}, nil
}

// dailySchedule resolves the trigger per calendar day, so a wall time
// repeated by a DST fall-back fires once and a skipped one still fires.
type dailySchedule struct {
	hour, minute int
	loc          *time.Location
}

func (d dailySchedule) Next(t time.Time) time.Time {
	lt := t.In(d.loc)
	next := d.on(lt.Year(), lt.Month(), lt.Day())
	if !next.After(t) {
		next = d.on(lt.Year(), lt.Month(), lt.Day()+1)
	}
	return next
}

func (d dailySchedule) on(y int, m time.Month, day int) time.Time {
	at := time.Date(y, m, day, d.hour, d.minute, 0, 0, d.loc)
	if at.Hour() == d.hour && at.Minute() == d.minute {
		return at
	}
	// Skipped by a forward transition: read the wall time with the offset in
	// force at midnight, which lands just after the gap.
	_, off := time.Date(y, m, day, 0, 0, 0, 0, d.loc).Zone()
	return time.Date(y, m, day, d.hour, d.minute, 0, 0, time.UTC).Add(-time.Duration(off) * time.Second).In(d.loc)
}

// onceSchedule fires at a single instant.
type onceSchedule struct{ at time.Time }

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// startingSchedule holds back a recurring schedule until its first instant.
type startingSchedule struct {
	first time.Time
	then  cron.Schedule
}

func (s startingSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.then.Next(t)
}

// ScheduleFor builds the trigger schedule for e in the zone of e.CallAt.
func ScheduleFor(e schedule.Entry, rec Recurrence) (cron.Schedule, error) {
	at := e.CallAt.Truncate(time.Minute)
	switch rec {
	case RecurOnce:
		return onceSchedule{at: at}, nil
	case RecurDaily, "":
		return Daily(at.Hour(), at.Minute(), at.Location())
	case RecurBoth:
		d, err := Daily(at.Hour(), at.Minute(), at.Location())
		if err != nil {
			return nil, err
		}
		return startingSchedule{first: at, then: d}, nil
	default:
		return nil, fmt.Errorf("unknown recurrence %q", rec)
	}
}
