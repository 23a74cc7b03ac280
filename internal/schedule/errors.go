package schedule

import "fmt"

// MalformedScheduleError rejects a whole schedule. Line is zero for header
// problems.
type MalformedScheduleError struct {
	Line   int
	Column string
	Reason string
	Err    error
}

func (e *MalformedScheduleError) Error() string {
	msg := "malformed schedule"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s: line %d", msg, e.Line)
	}
	if e.Column != "" {
		msg = fmt.Sprintf("%s: column %s", msg, e.Column)
	}
	msg = msg + ": " + e.Reason
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedScheduleError) Unwrap() error { return e.Err }
