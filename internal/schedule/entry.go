package schedule

import (
	"fmt"
	"time"
)

const (
	// TimeLayout is the time_of_call format, interpreted in the schedule zone.
	TimeLayout = "2006-01-02 15:04"

	DefaultTimezone = "America/Los_Angeles"
)

// Entry is one normalized schedule row.
type Entry struct {
	Name   string
	Phone  string
	CallAt time.Time
	// Line is the 1-based CSV line the entry came from; zero for other sources.
	Line int
}

// TimeOfDay is the zone-local HH:MM trigger used for daily recurrence.
func (e Entry) TimeOfDay() string {
	return e.CallAt.Format("15:04")
}

func (e Entry) String() string {
	return fmt.Sprintf("%s <%s> at %s", e.Name, e.Phone, e.CallAt.Format(TimeLayout+" MST"))
}

// ParseCallTime parses s as TimeLayout in loc.
func ParseCallTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(TimeLayout, s, loc)
}
