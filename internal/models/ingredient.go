package models

import (
	"time"
)

// Ingredient holds per-100g nutrition facts.
type Ingredient struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Calories  float64   `gorm:"not null" json:"calories"`
	ProteinG  float64   `gorm:"not null" json:"protein_g"`
	CarbsG    float64   `gorm:"not null" json:"carbs_g"`
	FatG      float64   `gorm:"not null" json:"fat_g"`
	CreatedAt time.Time `json:"created_at"`
}

func (Ingredient) TableName() string {
	return "ingredients"
}
