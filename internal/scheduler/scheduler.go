package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/call-scheduler/internal/calls"
)

const DefaultPollInterval = 30 * time.Second

type Dispatcher interface {
	CreateCall(ctx context.Context, number string) (calls.CallResult, error)
}

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Scheduler polls its Registry and places a call for every due job.
type Scheduler struct {
	Registry   *Registry
	Dispatcher Dispatcher
	Interval   time.Duration

	// CallTimeout bounds each outbound call; zero means no timeout.
	CallTimeout time.Duration
	// Limiter paces outbound calls; nil means unlimited.
	Limiter *rate.Limiter
	// ExitWhenIdle stops Run once no job has a future trigger.
	ExitWhenIdle bool

	Log zerolog.Logger
	Now func() time.Time

	state atomic.Int32
	wg    sync.WaitGroup
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run polls until ctx is cancelled, then waits for in-flight calls to return.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Registry == nil || s.Dispatcher == nil {
		return errors.New("scheduler: registry and dispatcher are required")
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	s.Log.Info().Int("jobs", s.Registry.Len()).Dur("interval", interval).Msg("scheduler running")

	// kick immediately
	s.tick(ctx)

	for {
		if s.ExitWhenIdle && s.Registry.Active() == 0 {
			s.stop()
			s.Log.Info().Msg("no jobs left to fire; scheduler stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			s.stop()
			s.Log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) stop() {
	s.state.Store(int32(StateStopped))
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) int {
	s.state.Store(int32(StatePolling))
	defer s.state.Store(int32(StateIdle))

	now := s.now()
	due := s.Registry.Due(now)
	if len(due) == 0 {
		s.Log.Debug().Time("now", now).Msg("poll: nothing due")
		return 0
	}
	for _, j := range due {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJob(ctx, j)
		}()
	}
	return len(due)
}

// runJob is the fault boundary for a single call: failures and panics are
// logged and never reach the poll loop.
func (s *Scheduler) runJob(ctx context.Context, j Job) {
	log := s.Log.With().
		Str("job_id", j.ID).
		Str("recipient", j.Entry.Name).
		Str("phone", j.Entry.Phone).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("call job panicked")
		}
	}()

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("call skipped")
			return
		}
	}

	callCtx := ctx
	if s.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.CallTimeout)
		defer cancel()
	}

	log.Info().Time("fired_at", j.LastFired).Msg("initiating call")
	res, err := s.Dispatcher.CreateCall(callCtx, j.Entry.Phone)
	if err != nil {
		ev := log.Error().Err(err)
		switch {
		case calls.IsAuthentication(err):
			ev = ev.Str("kind", "authentication")
		case calls.IsUpstream(err):
			ev = ev.Str("kind", "upstream")
		}
		ev.Msg("call failed")
		return
	}
	ev := log.Info().Str("call_id", res.ID)
	if !j.Next.IsZero() {
		ev = ev.Time("next", j.Next)
	}
	ev.Msg("call placed")
}
