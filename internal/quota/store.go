package quota

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups for identities that have never
// made a metered request and were never assigned a tier.
var ErrNotFound = errors.New("quota: identity not found")

// Counters is the persisted per-identity state: the assigned tier plus the
// daily bookkeeping. Tier is the raw stored string; the resolver decides what
// to do with values it cannot parse.
type Counters struct {
	Tier            string
	RequestsToday   int
	LastRequestDate time.Time
}

// Store is the persisted quota state, keyed by identity.
//
// IncrementDaily must be atomic with respect to concurrent callers for the
// same identity: it adds one to the day's counter (resetting to 1 when day
// differs from the stored date), creating the row if needed, and returns the
// post-increment count. The gate checks limits against that returned value.
type Store interface {
	GetTierAndCounters(ctx context.Context, identity string) (Counters, error)
	SetCounters(ctx context.Context, identity string, requestsToday int, lastRequestDate time.Time) error
	IncrementDaily(ctx context.Context, identity string, day time.Time) (int, error)
	DecrementDaily(ctx context.Context, identity string, day time.Time) error
}

// WindowSample is the result of recording one request event and counting the
// events remaining in the trailing window. Oldest is zero when the new event
// is the only one.
type WindowSample struct {
	Count  int
	Oldest time.Time
}

// WindowStore tracks timestamped request events per identity. RecordAndCount
// records an event at now, prunes events strictly older than now-window and
// returns the resulting count in one round trip.
type WindowStore interface {
	RecordAndCount(ctx context.Context, identity string, now time.Time, window time.Duration) (WindowSample, error)
}

// DayOf truncates t to its UTC calendar date. All daily bookkeeping compares
// dates produced by this function.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
