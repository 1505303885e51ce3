package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWindow_CountsEventsInWindow(t *testing.T) {
	w := NewMemoryWindow()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	window := 60 * time.Second

	for i := 0; i < 4; i++ {
		sample, err := w.RecordAndCount(context.Background(), "u1", base.Add(time.Duration(i)*time.Second), window)
		require.NoError(t, err)
		assert.Equal(t, i+1, sample.Count)
		assert.Equal(t, base, sample.Oldest)
	}
}

func TestMemoryWindow_PrunesExpiredEvents(t *testing.T) {
	w := NewMemoryWindow()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	window := 60 * time.Second

	w.RecordAndCount(context.Background(), "u1", base, window)
	w.RecordAndCount(context.Background(), "u1", base.Add(30*time.Second), window)

	// 70s later the first event has aged out, the second has not.
	sample, err := w.RecordAndCount(context.Background(), "u1", base.Add(70*time.Second), window)
	require.NoError(t, err)
	assert.Equal(t, 2, sample.Count)
	assert.Equal(t, base.Add(30*time.Second), sample.Oldest)
}

func TestMemoryWindow_KeepsBoundaryEvent(t *testing.T) {
	w := NewMemoryWindow()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	window := 60 * time.Second

	w.RecordAndCount(context.Background(), "u1", base, window)

	// An event exactly window-old still counts.
	sample, err := w.RecordAndCount(context.Background(), "u1", base.Add(window), window)
	require.NoError(t, err)
	assert.Equal(t, 2, sample.Count)
	assert.Equal(t, base, sample.Oldest)
}

func TestMemoryWindow_IsolatesIdentities(t *testing.T) {
	w := NewMemoryWindow()
	now := time.Now()
	window := 60 * time.Second

	for i := 0; i < 5; i++ {
		w.RecordAndCount(context.Background(), "a", now, window)
	}

	sample, err := w.RecordAndCount(context.Background(), "b", now, window)
	require.NoError(t, err)
	assert.Equal(t, 1, sample.Count)
}

func TestMemoryWindow_ConcurrentRecords(t *testing.T) {
	w := NewMemoryWindow()
	now := time.Now()
	window := time.Minute

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.RecordAndCount(context.Background(), "hot", now, window)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sample, err := w.RecordAndCount(context.Background(), "hot", now, window)
	require.NoError(t, err)
	assert.Equal(t, 101, sample.Count)
}
