package repository

import (
	"context"

	"github.com/mealforge/mealforge-api/internal/models"
	"github.com/mealforge/mealforge-api/internal/storage"
)

type IngredientRepository struct {
	db *storage.Postgres
}

func NewIngredientRepository(db *storage.Postgres) *IngredientRepository {
	return &IngredientRepository{db: db}
}

// Case-insensitive prefix-or-substring search, capped by limit
func (r *IngredientRepository) Search(ctx context.Context, query string, limit int) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := r.db.DB.WithContext(ctx).
		Where("name ILIKE ?", "%"+query+"%").
		Order("name ASC").
		Limit(limit).
		Find(&ingredients).Error

	return ingredients, err
}

func (r *IngredientRepository) Create(ctx context.Context, ingredient *models.Ingredient) error {
	return r.db.DB.WithContext(ctx).Create(ingredient).Error
}

func (r *IngredientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.Ingredient{}).
		Count(&count).Error

	return count, err
}
