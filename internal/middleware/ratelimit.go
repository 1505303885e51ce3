package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-api/internal/obs"
	"github.com/mealforge/mealforge-api/internal/quota"
)

const (
	tierKey     = "tier"
	profileKey  = "limit_profile"
	decisionKey = "quota_decision"
)

// SubscriptionTier resolves the caller's tier from persisted state and
// attaches it, with its limit profile, to the request context. It never
// denies; lookup failures degrade to the free tier inside the resolver.
func SubscriptionTier(resolver *quota.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := resolver.Resolve(c.Request.Context(), IdentityFrom(c))

		c.Set(tierKey, res.Tier)
		c.Set(profileKey, res.Profile)

		c.Next()
	}
}

// RateLimiter asks the gate to admit the request against the tier attached by
// SubscriptionTier. Allowed requests get X-RateLimit-* annotations; denied
// ones get a 429 with the reason and upgrade options.
func RateLimiter(gate *quota.Gate, metrics *obs.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := ProfileFrom(c)
		if profile == nil {
			// SubscriptionTier did not run on this route; nothing to enforce.
			c.Next()
			return
		}

		identity := IdentityFrom(c)
		dec := gate.Admit(c.Request.Context(), identity, profile)
		c.Set(decisionKey, dec)

		switch {
		case dec.FailOpen:
			metrics.FailOpenTotal.WithLabelValues(dec.Tier.String()).Inc()
			metrics.GateDecisions.WithLabelValues(dec.Tier.String(), "fail_open").Inc()
		case dec.Exempt:
			metrics.GateDecisions.WithLabelValues(dec.Tier.String(), "exempt").Inc()
		case dec.Allowed:
			metrics.GateDecisions.WithLabelValues(dec.Tier.String(), "allowed").Inc()
		default:
			metrics.GateDecisions.WithLabelValues(dec.Tier.String(), "denied").Inc()
		}

		annotateHeaders(c, dec)

		if !dec.Allowed {
			deny(c, dec)
			return
		}

		c.Next()
	}
}

func annotateHeaders(c *gin.Context, dec quota.Decision) {
	c.Header("X-RateLimit-Tier", dec.Tier.String())

	if dec.Exempt {
		c.Header("X-RateLimit-Exempt", "true")
		return
	}
	if dec.FailOpen {
		return
	}

	// Window cap headers when the tier has one, daily otherwise.
	if dec.WindowLimit != quota.Unlimited {
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", dec.WindowLimit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", dec.WindowRemaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", dec.WindowResetAt.Unix()))
	} else {
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", dec.DailyLimit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", dec.DailyRemaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", dec.DailyResetAt.Unix()))
	}
}

func deny(c *gin.Context, dec quota.Decision) {
	retryAfter := int(dec.RetryAfter(time.Now().UTC()).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))

	var errMsg string
	tierInfo := gin.H{"current_tier": dec.Tier.String()}

	switch dec.Reason {
	case quota.ReasonDailyLimit:
		errMsg = "Daily request limit reached"
		tierInfo["limit"] = dec.DailyLimit
		tierInfo["requests_used"] = dec.RequestsToday
		tierInfo["reset_date"] = dec.DailyResetAt.Format(time.RFC3339)
	case quota.ReasonWindowLimit:
		errMsg = "Too many requests, slow down"
		tierInfo["limit"] = dec.WindowLimit
		tierInfo["current_count"] = dec.WindowCount
		tierInfo["window_size_seconds"] = int(dec.WindowSize.Seconds())
	}

	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":           errMsg,
		"tier_info":       tierInfo,
		"upgrade_options": quota.NextTierBenefits(dec.Tier),
	})
	c.Abort()
}

// TierFrom returns the resolved tier, defaulting to free when the middleware
// did not run.
func TierFrom(c *gin.Context) quota.Tier {
	if v, ok := c.Get(tierKey); ok {
		if t, ok := v.(quota.Tier); ok {
			return t
		}
	}
	return quota.TierFree
}

// ProfileFrom returns the limit profile attached by SubscriptionTier, or nil.
func ProfileFrom(c *gin.Context) *quota.LimitProfile {
	if v, ok := c.Get(profileKey); ok {
		if p, ok := v.(*quota.LimitProfile); ok {
			return p
		}
	}
	return nil
}

// DecisionFrom returns the gate decision for this request, if any.
func DecisionFrom(c *gin.Context) (quota.Decision, bool) {
	if v, ok := c.Get(decisionKey); ok {
		if d, ok := v.(quota.Decision); ok {
			return d, true
		}
	}
	return quota.Decision{}, false
}
