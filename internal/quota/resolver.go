package quota

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Resolution is the outcome of mapping an identity to its tier.
type Resolution struct {
	Tier    Tier
	Profile *LimitProfile
}

// Resolver maps an inbound identity to its subscription tier and limit
// profile. Every failure path degrades to the free tier: a request is never
// denied because the tier lookup itself went wrong.
type Resolver struct {
	store    Store
	profiles *Profiles
	log      zerolog.Logger
	now      func() time.Time
}

func NewResolver(store Store, profiles *Profiles, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		profiles: profiles,
		log:      log.With().Str("component", "tier_resolver").Logger(),
		now:      time.Now,
	}
}

// Resolve looks up the persisted tier for identity. Anonymous requests
// (empty identity) resolve to free without touching storage. As a side
// effect, a stored counter from a previous UTC day is reset to zero here,
// write-through, before the caller evaluates any limits.
func (r *Resolver) Resolve(ctx context.Context, identity string) Resolution {
	free := Resolution{Tier: TierFree, Profile: r.profiles.ForTier(TierFree)}

	if identity == "" {
		return free
	}

	c, err := r.store.GetTierAndCounters(ctx, identity)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn().Err(err).Str("identity", identity).Msg("tier lookup failed, degrading to free")
		}
		return free
	}

	tier, err := ParseTier(c.Tier)
	if err != nil {
		r.log.Warn().Str("identity", identity).Str("tier", c.Tier).Msg("stored tier unknown, degrading to free")
		tier = TierFree
	}

	today := DayOf(r.now())
	if !c.LastRequestDate.IsZero() && !DayOf(c.LastRequestDate).Equal(today) {
		if err := r.store.SetCounters(ctx, identity, 0, today); err != nil {
			r.log.Warn().Err(err).Str("identity", identity).Msg("daily counter rollover write failed")
		}
	}

	return Resolution{Tier: tier, Profile: r.profiles.ForTier(tier)}
}
