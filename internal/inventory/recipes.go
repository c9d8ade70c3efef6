package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cafepos/models"
)

// RecipeIndex maps a product id to the recipe lines consumed by one unit of it.
// Products absent from the index have no recipe and are never stock-limited.
type RecipeIndex map[uint][]models.RecipeLine

func loadRecipeIndex(ctx context.Context, tx *gorm.DB, productIDs []uint) (RecipeIndex, error) {
	index := make(RecipeIndex, len(productIDs))
	if len(productIDs) == 0 {
		return index, nil
	}

	var lines []models.RecipeLine
	if err := tx.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id asc, ingredient_id asc, id asc").
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("load recipe lines: %w", err)
	}

	for _, line := range lines {
		index[line.ProductID] = append(index[line.ProductID], line)
	}
	return index, nil
}

// Demand aggregates, per ingredient, the quantity required by every line of
// an order. Lines sharing an ingredient are summed before any stock check.
func (idx RecipeIndex) Demand(lines []LineRequest) map[uint]decimal.Decimal {
	demand := make(map[uint]decimal.Decimal)
	for _, line := range lines {
		units := decimal.NewFromInt(int64(line.Quantity))
		for _, recipe := range idx[line.ProductID] {
			demand[recipe.IngredientID] = demand[recipe.IngredientID].Add(recipe.QuantityRequired.Mul(units))
		}
	}
	return demand
}

// IngredientIDs returns the distinct ingredients referenced by the index in ascending order.
func (idx RecipeIndex) IngredientIDs() []uint {
	seen := make(map[uint]struct{})
	for _, lines := range idx {
		for _, line := range lines {
			seen[line.IngredientID] = struct{}{}
		}
	}
	return sortedIDs(seen)
}

func sortedIDs[V any](set map[uint]V) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
