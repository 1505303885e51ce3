package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-api/internal/service"
)

type NutritionHandler struct {
	service *service.NutritionService
}

func NewNutritionHandler(service *service.NutritionService) *NutritionHandler {
	return &NutritionHandler{service: service}
}

// Handles POST /v1/analyze
func (h *NutritionHandler) AnalyzePlate(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id"`
		ImageURL string `json:"image_url" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	analysis, err := h.service.AnalyzePlate(ctx, req.ImageURL)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analysis temporarily unavailable, try again shortly"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// Handles POST /v1/plans/workout and /v1/plans/meal
func (h *NutritionHandler) GeneratePlan(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id"`
			Goal   string `json:"goal" binding:"required"`
			Days   int    `json:"days"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		plan, err := h.service.GeneratePlan(ctx, kind, req.Goal, req.Days)
		if err != nil {
			if errors.Is(err, service.ErrAnalysisUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Plan generation temporarily unavailable, try again shortly"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, plan)
	}
}
