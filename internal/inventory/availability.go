package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cafepos/models"
)

// ProductAvailability pairs a product with the number of units the current
// stock can still produce. MaxAvailable is nil when the product has no recipe.
type ProductAvailability struct {
	Product      models.Product
	MaxAvailable *int64
}

// MaxAvailable reports how many units of a product the current stock can
// produce. nil means unbounded.
func (e *Engine) MaxAvailable(ctx context.Context, productID uint) (*int64, error) {
	var available *int64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id").First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
			}
			return fmt.Errorf("load product %d: %w", productID, err)
		}

		index, err := loadRecipeIndex(ctx, tx, []uint{productID})
		if err != nil {
			return err
		}
		levels, err := readIngredients(ctx, tx, index.IngredientIDs(), false)
		if err != nil {
			return err
		}
		available = maxUnits(index[productID], stockOf(levels))
		return nil
	}, e.snapshotOptions()...)
	if err != nil {
		return nil, err
	}
	return available, nil
}

// ListProductsWithAvailability returns active products, optionally limited to
// one category, each annotated with its maximum producible units. All reads
// share one snapshot so annotations are mutually consistent.
func (e *Engine) ListProductsWithAvailability(ctx context.Context, categoryID *uint) ([]ProductAvailability, error) {
	var result []ProductAvailability
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Preload("Category").Where("is_active = ?", true)
		if categoryID != nil {
			query = query.Where("category_id = ?", *categoryID)
		}

		var products []models.Product
		if err := query.Order("id asc").Find(&products).Error; err != nil {
			return fmt.Errorf("list products: %w", err)
		}

		ids := make([]uint, 0, len(products))
		for _, product := range products {
			ids = append(ids, product.ID)
		}
		index, err := loadRecipeIndex(ctx, tx, ids)
		if err != nil {
			return err
		}
		levels, err := readIngredients(ctx, tx, index.IngredientIDs(), false)
		if err != nil {
			return err
		}
		stock := stockOf(levels)

		result = make([]ProductAvailability, 0, len(products))
		for _, product := range products {
			result = append(result, ProductAvailability{
				Product:      product,
				MaxAvailable: maxUnits(index[product.ID], stock),
			})
		}
		return nil
	}, e.snapshotOptions()...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func stockOf(levels map[uint]models.Ingredient) map[uint]decimal.Decimal {
	stock := make(map[uint]decimal.Decimal, len(levels))
	for id, ingredient := range levels {
		stock[id] = ingredient.CurrentStock
	}
	return stock
}

// maxUnits is the minimum over recipe lines of floor(stock / required),
// clamped at zero. An ingredient missing from stock counts as empty.
func maxUnits(recipe []models.RecipeLine, stock map[uint]decimal.Decimal) *int64 {
	var best *int64
	for _, line := range recipe {
		if !line.QuantityRequired.IsPositive() {
			continue
		}
		units := stock[line.IngredientID].Div(line.QuantityRequired).Floor().IntPart()
		if units < 0 {
			units = 0
		}
		if best == nil || units < *best {
			best = &units
		}
	}
	return best
}
