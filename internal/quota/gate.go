package quota

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reason identifies which cap denied a request.
type Reason string

const (
	ReasonDailyLimit  Reason = "DAILY_LIMIT"
	ReasonWindowLimit Reason = "WINDOW_LIMIT"
)

// Decision is the gate's verdict for one request plus everything the
// middleware needs to annotate headers or build a denial payload.
type Decision struct {
	Allowed bool
	Exempt  bool
	// FailOpen marks a decision that allowed the request because a counter
	// store was unavailable, not because limits were checked.
	FailOpen bool
	Reason   Reason

	Tier Tier

	DailyLimit     int
	RequestsToday  int
	DailyRemaining int
	DailyResetAt   time.Time

	WindowLimit     int
	WindowCount     int
	WindowRemaining int
	WindowSize      time.Duration
	WindowResetAt   time.Time
}

// Gate is the single admission point for metered requests. It owns both the
// daily counter and the sliding window and composes them deny-wins: a request
// passes only if neither cap blocks it. Business code must never consult the
// two stores independently.
type Gate struct {
	store  Store
	window WindowStore
	log    zerolog.Logger
	now    func() time.Time
}

func NewGate(store Store, window WindowStore, log zerolog.Logger) *Gate {
	return &Gate{
		store:  store,
		window: window,
		log:    log.With().Str("component", "gate").Logger(),
		now:    time.Now,
	}
}

// Admit decides whether one request for identity may proceed and performs all
// counter bookkeeping for it.
//
// The daily counter uses increment-then-check: the store increments
// atomically and Admit denies when the post-increment count exceeds the cap,
// issuing a best-effort compensating decrement. Under heavy contention the
// rollback can lag, overshooting the stored counter by at most the number of
// in-flight requests; the check itself never admits more than DailyLimit
// requests per UTC day.
//
// Storage failures on either counter fail open: the request is allowed,
// logged and marked FailOpen. A slow or down store degrades to unmetered,
// never to rejecting traffic.
func (g *Gate) Admit(ctx context.Context, identity string, profile *LimitProfile) Decision {
	if identity == "" || profile.Tier.IsTop() || profile.DailyUnlimited() {
		return Decision{Allowed: true, Exempt: true, Tier: profile.Tier}
	}

	now := g.now().UTC()
	day := DayOf(now)

	dec := Decision{
		Tier:         profile.Tier,
		DailyLimit:   profile.DailyLimit,
		WindowLimit:  profile.WindowLimit,
		WindowSize:   profile.WindowSize,
		DailyResetAt: day.AddDate(0, 0, 1),
	}

	count, err := g.store.IncrementDaily(ctx, identity, day)
	if err != nil {
		g.log.Warn().Err(err).Str("identity", identity).Msg("quota store unavailable, failing open")
		dec.Allowed = true
		dec.FailOpen = true
		return dec
	}

	if count > profile.DailyLimit {
		g.refundDaily(ctx, identity, day)
		dec.Reason = ReasonDailyLimit
		dec.RequestsToday = count - 1
		return dec
	}
	dec.RequestsToday = count
	dec.DailyRemaining = max(profile.DailyLimit-count, 0)

	if !profile.WindowUnlimited() {
		sample, err := g.window.RecordAndCount(ctx, identity, now, profile.WindowSize)
		if err != nil {
			g.log.Warn().Err(err).Str("identity", identity).Msg("window store unavailable, failing open")
			dec.Allowed = true
			dec.FailOpen = true
			return dec
		}

		dec.WindowCount = sample.Count
		dec.WindowResetAt = now
		if !sample.Oldest.IsZero() {
			dec.WindowResetAt = sample.Oldest.Add(profile.WindowSize)
		}

		if sample.Count > profile.WindowLimit {
			// The denied request still occupies its window slot, but it must
			// not burn daily quota.
			g.refundDaily(ctx, identity, day)
			dec.Reason = ReasonWindowLimit
			dec.RequestsToday = count - 1
			dec.DailyRemaining = max(profile.DailyLimit-count+1, 0)
			return dec
		}
		dec.WindowRemaining = max(profile.WindowLimit-sample.Count, 0)
	}

	dec.Allowed = true
	return dec
}

func (g *Gate) refundDaily(ctx context.Context, identity string, day time.Time) {
	if err := g.store.DecrementDaily(ctx, identity, day); err != nil {
		g.log.Warn().Err(err).Str("identity", identity).Msg("daily counter refund failed")
	}
}

// RetryAfter reports how long the denied caller should wait before the
// relevant cap can admit another request.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	var until time.Duration
	switch d.Reason {
	case ReasonWindowLimit:
		until = d.WindowResetAt.Sub(now)
	case ReasonDailyLimit:
		until = d.DailyResetAt.Sub(now)
	}
	return max(until, 0)
}
