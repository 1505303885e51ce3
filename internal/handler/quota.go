package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-api/internal/quota"
	"github.com/mealforge/mealforge-api/internal/repository"
)

// QuotaHandler exposes admin inspection and tier assignment for quota
// records.
type QuotaHandler struct {
	quotas   *repository.QuotaRepository
	profiles *quota.Profiles
}

func NewQuotaHandler(quotas *repository.QuotaRepository, profiles *quota.Profiles) *QuotaHandler {
	return &QuotaHandler{quotas: quotas, profiles: profiles}
}

// Handles GET /admin/quotas/:identity
func (h *QuotaHandler) Get(c *gin.Context) {
	identity := c.Param("identity")

	ctx := c.Request.Context()
	rec, err := h.quotas.Find(ctx, identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No quota record for identity"})
		return
	}

	tier, err := quota.ParseTier(rec.Tier)
	if err != nil {
		tier = quota.TierFree
	}
	profile := h.profiles.ForTier(tier)

	c.JSON(http.StatusOK, gin.H{
		"identity":          rec.Identity,
		"tier":              rec.Tier,
		"requests_today":    rec.RequestsToday,
		"last_request_date": rec.LastRequestDate.Format("2006-01-02"),
		"limits": gin.H{
			"daily_limit":         profile.DailyLimit,
			"window_limit":        profile.WindowLimit,
			"window_size_seconds": int(profile.WindowSize.Seconds()),
			"features":            profile.Features(),
		},
	})
}

// Handles PUT /admin/quotas/:identity/tier
func (h *QuotaHandler) SetTier(c *gin.Context) {
	identity := c.Param("identity")

	var req struct {
		Tier string `json:"tier" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := quota.ParseTier(req.Tier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.quotas.SetTier(ctx, identity, req.Tier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity": identity,
		"tier":     req.Tier,
		"message":  "Tier updated",
	})
}
