package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-api/internal/middleware"
	"github.com/mealforge/mealforge-api/internal/repository"
)

const defaultSearchResults = 10

type IngredientHandler struct {
	repo *repository.IngredientRepository
}

func NewIngredientHandler(repo *repository.IngredientRepository) *IngredientHandler {
	return &IngredientHandler{repo: repo}
}

// Handles GET /v1/ingredients/search. The result count is capped by the
// tier's search_results cap.
func (h *IngredientHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	limit := defaultSearchResults
	if profile := middleware.ProfileFrom(c); profile != nil {
		if n, ok := profile.Cap("search_results"); ok {
			limit = n
		}
	}

	ctx := c.Request.Context()
	ingredients, err := h.repo.Search(ctx, query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(ingredients),
		"results": ingredients,
	})
}
