package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/call-scheduler/internal/schedule"
)

// Job is a registered trigger bound to one schedule entry.
type Job struct {
	ID       string
	Entry    schedule.Entry
	Schedule cron.Schedule

	// Next is the upcoming trigger; zero once the schedule is exhausted.
	Next      time.Time
	LastFired time.Time
	Fired     int
}

// Active reports whether the job still has a future trigger.
func (j Job) Active() bool { return !j.Next.IsZero() }

// Registry owns the jobs polled by a single Scheduler.
type Registry struct {
	mu   sync.Mutex
	jobs []*Job
}

func NewRegistry() *Registry { return &Registry{} }

// Add registers e under a fresh id with its first trigger after now.
func (r *Registry) Add(e schedule.Entry, sched cron.Schedule, now time.Time) Job {
	j := &Job{
		ID:       uuid.NewString(),
		Entry:    e,
		Schedule: sched,
		Next:     sched.Next(now),
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, j)
	r.mu.Unlock()
	return *j
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Active counts jobs that still have a future trigger.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.Active() {
			n++
		}
	}
	return n
}

// Jobs returns a snapshot in registration order.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out
}

// Due returns the jobs whose trigger passed at or before now and advances each
// of them to its next trigger after now. A job that missed several triggers is
// returned once.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, j := range r.jobs {
		if !j.Active() || j.Next.After(now) {
			continue
		}
		j.LastFired = now
		j.Fired++
		j.Next = j.Schedule.Next(now)
		due = append(due, *j)
	}
	return due
}

// Register adds one job per entry.
func Register(r *Registry, entries []schedule.Entry, rec Recurrence, now time.Time) ([]Job, error) {
	scheds := make([]cron.Schedule, 0, len(entries))
	for _, e := range entries {
		s, err := ScheduleFor(e, rec)
		if err != nil {
			return nil, err
		}
		scheds = append(scheds, s)
	}
	out := make([]Job, 0, len(entries))
	for i, e := range entries {
		out = append(out, r.Add(e, scheds[i], now))
	}
	return out, nil
}
