// Package scheduler runs the background jobs of the platform on interval,
// daily and weekly cadences. Jobs are non-reentrant: a tick that finds the
// previous run still in flight is skipped, never queued.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/contact-core/internal/alerts"
	"github.com/ignite/contact-core/internal/domain"
)

// tickInterval is the scheduler's clock resolution. Cadences are checked on
// each tick, not timed, so no job can fire more often than this; it must
// stay at or below the shortest registered interval (import dispatch, 10s).
const tickInterval = 5 * time.Second

// JobFunc is one schedulable unit of work.
type JobFunc func(ctx context.Context) error

// cadence decides whether a job is due at a given instant, relative to its
// last completed start.
type cadence interface {
	due(now, lastStart time.Time) bool
	String() string
}

type intervalCadence struct{ every time.Duration }

func (c intervalCadence) due(now, lastStart time.Time) bool {
	return now.Sub(lastStart) >= c.every
}
func (c intervalCadence) String() string { return fmt.Sprintf("every %s", c.every) }

type dailyCadence struct{ hour, minute int }

func (c dailyCadence) due(now, lastStart time.Time) bool {
	target := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, now.Location())
	return !now.Before(target) && lastStart.Before(target)
}
func (c dailyCadence) String() string { return fmt.Sprintf("daily %02d:%02d", c.hour, c.minute) }

type weeklyCadence struct {
	weekday      time.Weekday
	hour, minute int
}

func (c weeklyCadence) due(now, lastStart time.Time) bool {
	if now.Weekday() != c.weekday {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, now.Location())
	return !now.Before(target) && lastStart.Before(target)
}
func (c weeklyCadence) String() string {
	return fmt.Sprintf("%s %02d:%02d", c.weekday, c.hour, c.minute)
}

// job is one registered entry plus its run state.
type job struct {
	name     string
	cadence  cadence
	fn       JobFunc
	inFlight atomic.Bool

	mu        sync.Mutex
	lastStart time.Time
	lastErr   error
	runs      int64
	failures  int64
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	Name      string    `json:"name"`
	Cadence   string    `json:"cadence"`
	InFlight  bool      `json:"in_flight"`
	LastStart time.Time `json:"last_start"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
}

// Scheduler owns the registry and the tick loop.
type Scheduler struct {
	emitter *alerts.Emitter
	now     func() time.Time

	mu   sync.Mutex
	jobs []*job
}

// New creates an empty scheduler. Failures are reported through emitter.
func New(emitter *alerts.Emitter) *Scheduler {
	return &Scheduler{emitter: emitter, now: time.Now}
}

// Register adds an interval job. The first run happens on the first tick.
func (s *Scheduler) Register(name string, every time.Duration, fn JobFunc) {
	s.add(&job{name: name, cadence: intervalCadence{every: every}, fn: fn})
}

// RegisterDaily adds a job firing once per day at hour:minute UTC.
func (s *Scheduler) RegisterDaily(name string, hour, minute int, fn JobFunc) {
	s.add(&job{name: name, cadence: dailyCadence{hour: hour, minute: minute}, fn: fn})
}

// RegisterWeekly adds a job firing once per week on weekday at hour:minute UTC.
func (s *Scheduler) RegisterWeekly(name string, weekday time.Weekday, hour, minute int, fn JobFunc) {
	s.add(&job{name: name, cadence: weeklyCadence{weekday: weekday, hour: hour, minute: minute}, fn: fn})
}

func (s *Scheduler) add(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	log.Printf("[Scheduler] registered %s (%s)", j.name, j.cadence)
}

// Run ticks until ctx is cancelled. Interval jobs all fire on the first
// tick, staggered only by goroutine scheduling.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[Scheduler] starting with %d jobs", len(s.jobs))
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Scheduler] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every due job that is not already in flight. Cadences are
// evaluated on the UTC clock face regardless of the server's zone.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	jobs := make([]*job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		j.mu.Lock()
		isDue := j.cadence.due(now, j.lastStart)
		j.mu.Unlock()
		if !isDue {
			continue
		}
		if !j.inFlight.CompareAndSwap(false, true) {
			log.Printf("[Scheduler] %s still running, tick skipped", j.name)
			continue
		}

		j.mu.Lock()
		j.lastStart = now
		j.mu.Unlock()

		go s.runJob(ctx, j)
	}
}

// runJob executes one job, converting panics and errors into a
// schedule_failure notification.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer j.inFlight.Store(false)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		err = j.fn(ctx)
	}()

	j.mu.Lock()
	j.runs++
	j.lastErr = err
	if err != nil {
		j.failures++
	}
	j.mu.Unlock()

	if err != nil {
		log.Printf("[Scheduler] %s failed: %v", j.name, err)
		if s.emitter != nil {
			s.emitter.Notify(ctx, domain.NotifyScheduleFailure,
				fmt.Sprintf("Scheduled job %s failed", j.name), err.Error())
		}
	}
}

// Status reports every job's run state for the diagnostics endpoint.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:      j.name,
			Cadence:   j.cadence.String(),
			InFlight:  j.inFlight.Load(),
			LastStart: j.lastStart,
			Runs:      j.runs,
			Failures:  j.failures,
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	return out
}
