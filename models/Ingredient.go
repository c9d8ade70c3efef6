package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ingredient is a tracked stock item. CurrentStock only moves through order
// commits and supply receipts.
type Ingredient struct {
	gorm.Model
	Name             string          `gorm:"not null" json:"name"`
	CurrentStock     decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"current_stock"`
	Unit             string          `gorm:"not null" json:"unit"`
	WarningThreshold decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"warning_threshold"`
}

// Low reports whether the stock has fallen to the advisory warning threshold.
func (i Ingredient) Low() bool {
	return i.CurrentStock.LessThanOrEqual(i.WarningThreshold)
}

// Supply records a received delivery of an ingredient.
type Supply struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	IngredientID  uint            `gorm:"not null;index" json:"ingredient_id"`
	QuantityAdded decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_added"`
	Cost          decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"cost"`
	SupplyDate    time.Time       `gorm:"not null" json:"supply_date"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:RESTRICT" json:"ingredient,omitempty"`
}

// TableName keeps the historical table name for supplies.
func (Supply) TableName() string {
	return "supplies"
}
