package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products on the menu.
type Category struct {
	gorm.Model
	Name string `gorm:"not null" json:"name"`
}

// Product is a sellable menu item. A product without recipe lines is never stock-limited.
type Product struct {
	gorm.Model
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	Recipe      []RecipeLine    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"recipe,omitempty"`
}

// RecipeLine states how much of one ingredient a single unit of a product consumes.
type RecipeLine struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ProductID        uint            `gorm:"not null;index" json:"product_id"`
	IngredientID     uint            `gorm:"not null;index" json:"ingredient_id"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_required"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:RESTRICT" json:"ingredient,omitempty"`
}

// TableName keeps the historical table name for recipe lines.
func (RecipeLine) TableName() string {
	return "recipes"
}
