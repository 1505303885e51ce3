package quota

import (
	"fmt"
	"time"
)

// Tier is a named subscription level. Ordering matters: tierOrder is the
// upgrade path, and the last entry is the unlimited top tier.
type Tier string

const (
	TierFree   Tier = "free"
	TierActive Tier = "active"
	TierGrowth Tier = "growth"
	TierThrive Tier = "thrive"
)

var tierOrder = []Tier{TierFree, TierActive, TierGrowth, TierThrive}

func ParseTier(s string) (Tier, error) {
	for _, t := range tierOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

func (t Tier) String() string { return string(t) }

func (t Tier) IsTop() bool { return t == tierOrder[len(tierOrder)-1] }

// Next returns the tier above t, or false for the top tier.
func (t Tier) Next() (Tier, bool) {
	for i, cur := range tierOrder {
		if cur == t && i+1 < len(tierOrder) {
			return tierOrder[i+1], true
		}
	}
	return "", false
}

// Unlimited is the sentinel for limits that are not enforced.
const Unlimited = -1

// ProfileSpec is the YAML shape of a tier's limits in the config file.
type ProfileSpec struct {
	DailyLimit    int            `yaml:"daily_limit"`
	WindowLimit   int            `yaml:"window_limit"`
	WindowSeconds int            `yaml:"window_seconds"`
	Features      []string       `yaml:"features"`
	Caps          map[string]int `yaml:"caps"`
}

// LimitProfile is the immutable, resolved limit table for one tier. Profiles
// are built once at startup and shared read-only across all requests.
type LimitProfile struct {
	Tier        Tier
	DailyLimit  int
	WindowLimit int
	WindowSize  time.Duration

	features map[string]struct{}
	caps     map[string]int
}

func (p *LimitProfile) DailyUnlimited() bool  { return p.DailyLimit == Unlimited }
func (p *LimitProfile) WindowUnlimited() bool { return p.WindowLimit == Unlimited }

func (p *LimitProfile) HasFeature(name string) bool {
	_, ok := p.features[name]
	return ok
}

func (p *LimitProfile) Features() []string {
	out := make([]string, 0, len(p.features))
	for f := range p.features {
		out = append(out, f)
	}
	return out
}

// Cap returns the named secondary cap, or ok=false if the tier does not
// define it.
func (p *LimitProfile) Cap(name string) (int, bool) {
	v, ok := p.caps[name]
	return v, ok
}

// Profiles maps every known tier to its limit profile.
type Profiles struct {
	byTier map[Tier]*LimitProfile
}

// BuildProfiles validates the configured tier specs and freezes them into an
// immutable profile table. Serving traffic with undefined or malformed limits
// is worse than not starting, so any validation failure here is fatal to the
// caller.
func BuildProfiles(specs map[string]ProfileSpec) (*Profiles, error) {
	byTier := make(map[Tier]*LimitProfile, len(specs))

	for name, spec := range specs {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("invalid tier config: %w", err)
		}
		if spec.DailyLimit < Unlimited {
			return nil, fmt.Errorf("invalid tier config: %s daily_limit must be >= 0 or %d", name, Unlimited)
		}
		if spec.WindowLimit < Unlimited {
			return nil, fmt.Errorf("invalid tier config: %s window_limit must be >= 0 or %d", name, Unlimited)
		}
		if spec.WindowLimit != Unlimited && spec.WindowSeconds <= 0 {
			return nil, fmt.Errorf("invalid tier config: %s window_seconds must be positive", name)
		}

		features := make(map[string]struct{}, len(spec.Features))
		for _, f := range spec.Features {
			features[f] = struct{}{}
		}
		caps := make(map[string]int, len(spec.Caps))
		for k, v := range spec.Caps {
			caps[k] = v
		}

		byTier[tier] = &LimitProfile{
			Tier:        tier,
			DailyLimit:  spec.DailyLimit,
			WindowLimit: spec.WindowLimit,
			WindowSize:  time.Duration(spec.WindowSeconds) * time.Second,
			features:    features,
			caps:        caps,
		}
	}

	for _, tier := range tierOrder {
		if _, ok := byTier[tier]; !ok {
			return nil, fmt.Errorf("invalid tier config: tier %q is not configured", tier)
		}
	}

	return &Profiles{byTier: byTier}, nil
}

// ForTier returns the profile for a tier. Profiles are validated to cover
// every known tier, so a lookup for a parsed Tier always succeeds.
func (p *Profiles) ForTier(t Tier) *LimitProfile {
	return p.byTier[t]
}
