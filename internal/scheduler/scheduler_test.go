package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day time.Weekday, hour, minute int) time.Time {
	// 2026-08-17 is a Monday.
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(day-time.Monday)).Add(
		time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestIntervalCadence(t *testing.T) {
	c := intervalCadence{every: 5 * time.Minute}
	now := at(time.Monday, 10, 0)

	assert.True(t, c.due(now, time.Time{}), "fires immediately when never run")
	assert.False(t, c.due(now, now.Add(-time.Minute)))
	assert.True(t, c.due(now, now.Add(-5*time.Minute)))
}

func TestDailyCadence(t *testing.T) {
	c := dailyCadence{hour: 9, minute: 30}

	assert.False(t, c.due(at(time.Monday, 9, 0), time.Time{}), "before target time")
	assert.True(t, c.due(at(time.Monday, 9, 30), time.Time{}))
	assert.True(t, c.due(at(time.Monday, 23, 0), time.Time{}), "late start still fires")

	ran := at(time.Monday, 9, 30)
	assert.False(t, c.due(at(time.Monday, 15, 0), ran), "fires once per day")
	assert.True(t, c.due(at(time.Tuesday, 9, 30), ran))
}

func TestWeeklyCadence(t *testing.T) {
	c := weeklyCadence{weekday: time.Friday, hour: 17, minute: 0}

	assert.False(t, c.due(at(time.Thursday, 17, 0), time.Time{}))
	assert.True(t, c.due(at(time.Friday, 17, 0), time.Time{}))
	assert.False(t, c.due(at(time.Friday, 16, 59), time.Time{}))

	ran := at(time.Friday, 17, 0)
	assert.False(t, c.due(at(time.Friday, 18, 0), ran), "fires once per occurrence")
}

func TestTickResolutionCoversDispatchCadence(t *testing.T) {
	// Import dispatch registers at 10s; a coarser tick would silently
	// stretch every shorter cadence to the tick interval.
	assert.LessOrEqual(t, tickInterval, 10*time.Second)
}

func TestTickEvaluatesCadencesInUTC(t *testing.T) {
	s := New(nil)
	// 09:30 UTC Monday expressed in UTC-7, where the local clock still
	// reads 02:30. The 09:00 daily job must fire on the UTC clock face.
	loc := time.FixedZone("UTC-7", -7*3600)
	now := at(time.Monday, 9, 30).In(loc)
	s.now = func() time.Time { return now }

	done := make(chan struct{}, 1)
	s.RegisterDaily("morning", 9, 0, func(ctx context.Context) error {
		done <- struct{}{}
		return nil
	})

	s.Tick(context.Background())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("daily job did not fire at 09:30 UTC")
	}
}

func TestTickRunsDueJobs(t *testing.T) {
	s := New(nil)
	now := at(time.Monday, 10, 0)
	s.now = func() time.Time { return now }

	var runs atomic.Int32
	done := make(chan struct{}, 4)
	s.Register("counter", time.Minute, func(ctx context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	})

	s.Tick(context.Background())
	<-done
	assert.Equal(t, int32(1), runs.Load())

	// Same instant: interval not yet elapsed.
	s.Tick(context.Background())
	assert.Equal(t, int32(1), runs.Load())

	now = now.Add(time.Minute)
	s.Tick(context.Background())
	<-done
	assert.Equal(t, int32(2), runs.Load())
}

func TestTickSkipsInFlightJob(t *testing.T) {
	s := New(nil)
	now := at(time.Monday, 10, 0)
	s.now = func() time.Time { return now }

	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	s.Register("slow", time.Minute, func(ctx context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	s.Tick(context.Background())
	<-started

	// The job is still running; later due ticks must not stack a second run.
	now = now.Add(5 * time.Minute)
	s.Tick(context.Background())
	now = now.Add(5 * time.Minute)
	s.Tick(context.Background())
	assert.Equal(t, int32(1), runs.Load())

	close(release)
}

func TestRunJobRecoversPanic(t *testing.T) {
	s := New(nil)
	j := &job{name: "explodes", cadence: intervalCadence{every: time.Minute}, fn: func(ctx context.Context) error {
		panic("boom")
	}}
	j.inFlight.Store(true)

	s.runJob(context.Background(), j)

	assert.False(t, j.inFlight.Load())
	assert.Equal(t, int64(1), j.failures)
	assert.ErrorContains(t, j.lastErr, "boom")
}

func TestStatus(t *testing.T) {
	s := New(nil)
	s.RegisterDaily("rollup", 6, 0, func(ctx context.Context) error { return nil })
	s.RegisterWeekly("quota", time.Friday, 17, 0, func(ctx context.Context) error { return nil })

	statuses := s.Status()
	assert.Len(t, statuses, 2)
	assert.Equal(t, "rollup", statuses[0].Name)
	assert.Equal(t, "daily 06:00", statuses[0].Cadence)
	assert.Equal(t, "Friday 17:00", statuses[1].Cadence)
}
