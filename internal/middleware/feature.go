package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-api/internal/quota"
)

// RequireFeature rejects requests whose tier does not carry the named
// capability flag. Runs after SubscriptionTier.
func RequireFeature(flag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := ProfileFrom(c)
		if profile == nil || profile.HasFeature(flag) {
			c.Next()
			return
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":           "This feature is not included in your plan",
			"feature":         flag,
			"current_tier":    profile.Tier.String(),
			"upgrade_options": quota.NextTierBenefits(profile.Tier),
		})
		c.Abort()
	}
}
