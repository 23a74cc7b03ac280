package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/example/call-scheduler/internal/calls"
	"github.com/example/call-scheduler/internal/schedule"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	numbers []string
	fail    map[string]error
	panics  map[string]bool
	block   map[string]chan struct{}
}

func (f *fakeDispatcher) CreateCall(ctx context.Context, number string) (calls.CallResult, error) {
	if ch, ok := f.block[number]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return calls.CallResult{}, &calls.UpstreamError{Provider: "fake", Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	f.numbers = append(f.numbers, number)
	f.mu.Unlock()
	if f.panics[number] {
		panic("boom")
	}
	if err := f.fail[number]; err != nil {
		return calls.CallResult{}, err
	}
	return calls.CallResult{ID: "call-" + number, Provider: "fake"}, nil
}

func (f *fakeDispatcher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.numbers...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func threeJobs(t *testing.T, rec Recurrence) *Registry {
	t.Helper()
	reg := NewRegistry()
	_, err := Register(reg, []schedule.Entry{
		entryAt(t, "Alice", "+14085551234", "2024-06-01 09:00"),
		entryAt(t, "Bob", "+442071234567", "2024-06-01 09:00"),
		entryAt(t, "Carol", "+16505550000", "2024-06-01 17:30"),
	}, rec, at(t, "2024-06-01 08:00:00"))
	require.NoError(t, err)
	return reg
}

func TestTickDispatchesDueJobs(t *testing.T) {
	d := &fakeDispatcher{}
	clk := &clock{now: at(t, "2024-06-01 09:00:15")}
	s := &Scheduler{Registry: threeJobs(t, RecurDaily), Dispatcher: d, Log: zerolog.Nop(), Now: clk.Now}

	n := s.tick(context.Background())
	s.wg.Wait()
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"+14085551234", "+442071234567"}, d.called())
	assert.Equal(t, StateIdle, s.State())

	// same window again: nothing new
	assert.Zero(t, s.tick(context.Background()))

	clk.Set(at(t, "2024-06-01 17:30:05"))
	assert.Equal(t, 1, s.tick(context.Background()))
	s.wg.Wait()
	assert.Len(t, d.called(), 3)
}

func TestJobFailuresDoNotStopOtherJobs(t *testing.T) {
	d := &fakeDispatcher{
		fail:   map[string]error{"+14085551234": &calls.UpstreamError{Provider: "fake", Status: 500, Message: "down"}},
		panics: map[string]bool{"+442071234567": true},
	}
	clk := &clock{now: at(t, "2024-06-01 17:31:00")}
	s := &Scheduler{Registry: threeJobs(t, RecurDaily), Dispatcher: d, Log: zerolog.Nop(), Now: clk.Now}

	assert.Equal(t, 3, s.tick(context.Background()))
	s.wg.Wait()
	assert.Len(t, d.called(), 3)

	// the loop keeps going the next day
	clk.Set(at(t, "2024-06-02 09:00:10"))
	assert.Equal(t, 2, s.tick(context.Background()))
	s.wg.Wait()
	assert.Len(t, d.called(), 5)
}

func TestSlowCallDoesNotBlockPolling(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDispatcher{block: map[string]chan struct{}{"+14085551234": release}}
	clk := &clock{now: at(t, "2024-06-01 09:00:15")}
	s := &Scheduler{Registry: threeJobs(t, RecurDaily), Dispatcher: d, Log: zerolog.Nop(), Now: clk.Now}

	assert.Equal(t, 2, s.tick(context.Background()))
	require.Eventually(t, func() bool { return len(d.called()) == 1 }, time.Second, 5*time.Millisecond)

	clk.Set(at(t, "2024-06-01 17:30:05"))
	assert.Equal(t, 1, s.tick(context.Background()))
	require.Eventually(t, func() bool { return len(d.called()) == 2 }, time.Second, 5*time.Millisecond)

	close(release)
	s.wg.Wait()
	assert.Len(t, d.called(), 3)
}

func TestCallTimeout(t *testing.T) {
	d := &fakeDispatcher{block: map[string]chan struct{}{"+14085551234": make(chan struct{})}}
	clk := &clock{now: at(t, "2024-06-01 09:00:15")}
	reg := NewRegistry()
	_, err := Register(reg, []schedule.Entry{entryAt(t, "Alice", "+14085551234", "2024-06-01 09:00")}, RecurDaily, at(t, "2024-06-01 08:00:00"))
	require.NoError(t, err)
	s := &Scheduler{Registry: reg, Dispatcher: d, CallTimeout: 20 * time.Millisecond, Log: zerolog.Nop(), Now: clk.Now}

	s.tick(context.Background())
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call was not bounded by CallTimeout")
	}
	assert.Empty(t, d.called())
}

func TestLimiterHonoursCancellation(t *testing.T) {
	d := &fakeDispatcher{}
	clk := &clock{now: at(t, "2024-06-01 09:00:15")}
	s := &Scheduler{
		Registry:   threeJobs(t, RecurDaily),
		Dispatcher: d,
		Limiter:    rate.NewLimiter(rate.Every(time.Hour), 1),
		Log:        zerolog.Nop(),
		Now:        clk.Now,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 2, s.tick(ctx))
	s.wg.Wait()
	assert.Empty(t, d.called())
}

func TestRunStopsOnCancel(t *testing.T) {
	d := &fakeDispatcher{}
	clk := &clock{now: at(t, "2024-06-01 08:30:00")}
	s := &Scheduler{Registry: threeJobs(t, RecurDaily), Dispatcher: d, Interval: 5 * time.Millisecond, Log: zerolog.Nop(), Now: clk.Now}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, d.called())

	clk.Set(at(t, "2024-06-01 09:00:05"))
	require.Eventually(t, func() bool { return len(d.called()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, s.State())
	assert.Len(t, d.called(), 2)
}

func TestRunExitWhenIdle(t *testing.T) {
	d := &fakeDispatcher{}
	clk := &clock{now: at(t, "2024-06-01 18:00:00")}
	s := &Scheduler{
		Registry:     threeJobs(t, RecurOnce),
		Dispatcher:   d,
		Interval:     5 * time.Millisecond,
		ExitWhenIdle: true,
		Log:          zerolog.Nop(),
		Now:          clk.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Len(t, d.called(), 3)
	assert.Equal(t, StateStopped, s.State())
}

func TestRunRequiresDependencies(t *testing.T) {
	s := &Scheduler{Log: zerolog.Nop()}
	assert.Error(t, s.Run(context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
