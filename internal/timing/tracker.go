package timing

import (
	"context"
	"sync"
	"time"
)

type timingKey struct{}

type timingInfo struct {
	operation string
	start     time.Time
}

// Stage aggregates every measurement of one operation.
type Stage struct {
	Operation string
	Count     int
	Total     time.Duration
}

// Tracker records durations per operation, remembering first-seen order.
type Tracker struct {
	mu      sync.Mutex
	timings map[string][]time.Duration
	order   []string
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		now:     time.Now,
	}
}

// StartTiming returns a context carrying the start of operation.
func (tt *Tracker) StartTiming(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, timingKey{}, timingInfo{
		operation: operation,
		start:     tt.now(),
	})
}

// EndTiming records the time elapsed since the matching StartTiming.
func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	info, ok := ctx.Value(timingKey{}).(timingInfo)
	if !ok {
		return 0
	}

	d := tt.now().Sub(info.start)
	tt.Record(info.operation, d)
	return d
}

func (tt *Tracker) Record(operation string, d time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if _, seen := tt.timings[operation]; !seen {
		tt.order = append(tt.order, operation)
	}
	tt.timings[operation] = append(tt.timings[operation], d)
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

// Stages summarises all operations in the order they were first recorded.
func (tt *Tracker) Stages() []Stage {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	stages := make([]Stage, 0, len(tt.order))
	for _, op := range tt.order {
		s := Stage{Operation: op, Count: len(tt.timings[op])}
		for _, d := range tt.timings[op] {
			s.Total += d
		}
		stages = append(stages, s)
	}
	return stages
}
