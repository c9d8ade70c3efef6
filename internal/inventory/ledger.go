package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cafepos/models"
)

// Ledger reads and moves ingredient stock. Every write is a compare-and-swap
// against the value observed under lock, so a lost update surfaces as
// ErrTransientStore instead of silently overwriting a concurrent change.
type Ledger struct {
	db *gorm.DB
}

// Levels reads the current stock of the given ingredients without locking.
func (l *Ledger) Levels(ctx context.Context, ids []uint) (map[uint]models.Ingredient, error) {
	return readIngredients(ctx, l.db, ids, false)
}

// Lock reads the given ingredients with row locks held until tx ends. Rows are
// locked in ascending id order so concurrent commits cannot deadlock each other.
func (l *Ledger) Lock(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]models.Ingredient, error) {
	return readIngredients(ctx, tx, ids, true)
}

// Adjust adds delta to an ingredient's stock within tx and returns the updated
// row. A result below zero is rejected with an *InsufficientStockError.
func (l *Ledger) Adjust(ctx context.Context, tx *gorm.DB, ingredientID uint, delta decimal.Decimal) (models.Ingredient, error) {
	rows, err := l.Lock(ctx, tx, []uint{ingredientID})
	if err != nil {
		return models.Ingredient{}, err
	}
	ingredient, ok := rows[ingredientID]
	if !ok {
		return models.Ingredient{}, fmt.Errorf("%w: %d", ErrUnknownIngredient, ingredientID)
	}

	next := ingredient.CurrentStock.Add(delta)
	if next.IsNegative() {
		return models.Ingredient{}, &InsufficientStockError{
			IngredientID: ingredient.ID,
			Name:         ingredient.Name,
			Unit:         ingredient.Unit,
			Required:     delta.Neg(),
			Available:    ingredient.CurrentStock,
		}
	}
	if err := l.swap(ctx, tx, ingredient, next); err != nil {
		return models.Ingredient{}, err
	}
	ingredient.CurrentStock = next
	return ingredient, nil
}

func (l *Ledger) swap(ctx context.Context, tx *gorm.DB, observed models.Ingredient, next decimal.Decimal) error {
	if next.IsNegative() {
		return &InsufficientStockError{
			IngredientID: observed.ID,
			Name:         observed.Name,
			Unit:         observed.Unit,
			Required:     observed.CurrentStock.Sub(next),
			Available:    observed.CurrentStock,
		}
	}

	result := tx.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("id = ? AND current_stock = ?", observed.ID, observed.CurrentStock).
		Update("current_stock", next)
	if result.Error != nil {
		return fmt.Errorf("update stock of ingredient %d: %w", observed.ID, result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: stock of ingredient %d changed concurrently", ErrTransientStore, observed.ID)
	}
	return nil
}

func readIngredients(ctx context.Context, db *gorm.DB, ids []uint, lock bool) (map[uint]models.Ingredient, error) {
	levels := make(map[uint]models.Ingredient, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}

	query := db.WithContext(ctx).Where("id IN ?", ids).Order("id asc")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []models.Ingredient
	if err := query.Find(&rows).Error; err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("read ingredient levels: %w", err)
	}
	for _, row := range rows {
		levels[row.ID] = row
	}
	return levels, nil
}
