package quota

import (
	"context"
	"sync"
	"time"
)

type eventSet struct {
	mu     sync.Mutex
	events []time.Time // ascending
}

// MemoryWindow is an in-process WindowStore. It mirrors the Redis
// implementation's semantics and backs single-node deployments and tests.
type MemoryWindow struct {
	sets sync.Map // identity -> *eventSet
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{}
}

var _ WindowStore = (*MemoryWindow)(nil)

func (w *MemoryWindow) RecordAndCount(_ context.Context, identity string, now time.Time, window time.Duration) (WindowSample, error) {
	v, _ := w.sets.LoadOrStore(identity, &eventSet{})
	set := v.(*eventSet)

	set.mu.Lock()
	defer set.mu.Unlock()

	cutoff := now.Add(-window)

	kept := set.events[:0]
	for _, ev := range set.events {
		// Boundary events survive the prune, matching the Redis store.
		if !ev.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	set.events = append(kept, now)

	return WindowSample{
		Count:  len(set.events),
		Oldest: set.events[0],
	}, nil
}
