// Package supply records ingredient deliveries and the stock they add.
package supply

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cafepos/internal/events"
	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/models"
)

var (
	ErrInvalidQuantity = errors.New("supply: quantity must be positive")
	ErrInvalidCost     = errors.New("supply: cost must not be negative")
	ErrEmptyNote       = errors.New("supply: delivery note has no lines")
)

// Receipt is a single delivery of one ingredient.
type Receipt struct {
	IngredientID uint
	Quantity     decimal.Decimal
	Cost         decimal.Decimal
	// Date defaults to the time of recording when zero.
	Date time.Time
}

// Service records supplies through the inventory engine's ledger.
type Service struct {
	engine *inventory.Engine
	now    func() time.Time
}

func NewService(engine *inventory.Engine) (*Service, error) {
	if engine == nil {
		return nil, errors.New("supply: inventory engine is nil")
	}
	return &Service{engine: engine, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Receive stores the supply row and raises the ingredient's stock in one transaction.
func (s *Service) Receive(ctx context.Context, receipt Receipt) (models.Supply, error) {
	if err := validate(receipt.Quantity, receipt.Cost); err != nil {
		return models.Supply{}, err
	}

	var supply models.Supply
	err := s.engine.Transact(ctx, "receive supply", func(tx *gorm.DB) error {
		recorded, err := s.record(ctx, tx, receipt)
		if err != nil {
			return err
		}
		supply = recorded
		return nil
	})
	if err != nil {
		return models.Supply{}, err
	}

	applog.Info(ctx, "supply received", "ingredient_id", supply.IngredientID, "quantity", supply.QuantityAdded.String())
	s.engine.PublishStockChange(ctx, events.SourceSupply, []uint{supply.IngredientID})
	s.warnLow(ctx, []uint{supply.IngredientID})
	return supply, nil
}

// ReceiveNote records every line of a delivery note, resolving ingredient
// names case-insensitively. One unknown name rejects the whole note.
func (s *Service) ReceiveNote(ctx context.Context, lines []NoteLine, date time.Time) ([]models.Supply, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyNote
	}
	for _, line := range lines {
		if err := validate(line.Quantity, line.Cost); err != nil {
			return nil, fmt.Errorf("line %d: %w", line.Number, err)
		}
	}

	var supplies []models.Supply
	err := s.engine.Transact(ctx, "receive delivery note", func(tx *gorm.DB) error {
		ids, err := resolveIngredients(ctx, tx, lines)
		if err != nil {
			return err
		}

		supplies = make([]models.Supply, 0, len(lines))
		for _, line := range lines {
			supply, err := s.record(ctx, tx, Receipt{
				IngredientID: ids[strings.ToLower(line.Name)],
				Quantity:     line.Quantity,
				Cost:         line.Cost,
				Date:         date,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", line.Number, err)
			}
			supplies = append(supplies, supply)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	touched := make([]uint, 0, len(supplies))
	seen := make(map[uint]bool, len(supplies))
	for _, supply := range supplies {
		if !seen[supply.IngredientID] {
			seen[supply.IngredientID] = true
			touched = append(touched, supply.IngredientID)
		}
	}
	applog.Info(ctx, "delivery note received", "lines", len(supplies), "ingredients", len(touched))
	s.engine.PublishStockChange(ctx, events.SourceSupply, touched)
	s.warnLow(ctx, touched)
	return supplies, nil
}

// LowStock returns the ingredients among ids whose stock is at or below their
// warning threshold, ordered by id. Unknown ids are ignored.
func (s *Service) LowStock(ctx context.Context, ids []uint) ([]models.Ingredient, error) {
	levels, err := s.engine.Ledger().Levels(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("supply: read stock levels: %w", err)
	}
	var low []models.Ingredient
	for _, ingredient := range levels {
		if ingredient.Low() {
			low = append(low, ingredient)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].ID < low[j].ID })
	return low, nil
}

func (s *Service) warnLow(ctx context.Context, ids []uint) {
	low, err := s.LowStock(ctx, ids)
	if err != nil {
		applog.Warn(ctx, "low stock check failed", "error", err)
		return
	}
	for _, ingredient := range low {
		applog.Warn(ctx, "ingredient still low after delivery",
			"ingredient_id", ingredient.ID,
			"name", ingredient.Name,
			"stock", ingredient.CurrentStock.String(),
			"threshold", ingredient.WarningThreshold.String(),
		)
	}
}

// Register creates an ingredient. A positive opening quantity is booked as
// its first supply in the same transaction, so stock never appears without a
// matching supply row.
func (s *Service) Register(ctx context.Context, ingredient models.Ingredient, opening, cost decimal.Decimal) (models.Ingredient, error) {
	if opening.IsNegative() {
		return models.Ingredient{}, ErrInvalidQuantity
	}
	if cost.IsNegative() {
		return models.Ingredient{}, ErrInvalidCost
	}

	ingredient.ID = 0
	ingredient.CurrentStock = decimal.Zero
	var registered models.Ingredient
	err := s.engine.Transact(ctx, "register ingredient", func(tx *gorm.DB) error {
		created := ingredient
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("insert ingredient: %w", err)
		}
		if opening.IsPositive() {
			if _, err := s.record(ctx, tx, Receipt{IngredientID: created.ID, Quantity: opening, Cost: cost}); err != nil {
				return err
			}
			created.CurrentStock = opening
		}
		registered = created
		return nil
	})
	if err != nil {
		return models.Ingredient{}, err
	}

	applog.Info(ctx, "ingredient registered", "ingredient_id", registered.ID, "opening", opening.String())
	if opening.IsPositive() {
		s.engine.PublishStockChange(ctx, events.SourceSupply, []uint{registered.ID})
	}
	return registered, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, receipt Receipt) (models.Supply, error) {
	if _, err := s.engine.Ledger().Adjust(ctx, tx, receipt.IngredientID, receipt.Quantity); err != nil {
		return models.Supply{}, err
	}

	date := receipt.Date
	if date.IsZero() {
		date = s.now()
	}
	supply := models.Supply{
		IngredientID:  receipt.IngredientID,
		QuantityAdded: receipt.Quantity,
		Cost:          receipt.Cost,
		SupplyDate:    date,
	}
	if err := tx.Omit("Ingredient").Create(&supply).Error; err != nil {
		return models.Supply{}, fmt.Errorf("insert supply: %w", err)
	}
	return supply, nil
}

func resolveIngredients(ctx context.Context, tx *gorm.DB, lines []NoteLine) (map[string]uint, error) {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, strings.ToLower(line.Name))
	}

	var ingredients []models.Ingredient
	if err := tx.WithContext(ctx).
		Where("LOWER(name) IN ?", names).
		Order("id asc").
		Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("resolve ingredients: %w", err)
	}

	ids := make(map[string]uint, len(ingredients))
	for _, ingredient := range ingredients {
		key := strings.ToLower(ingredient.Name)
		if _, ok := ids[key]; !ok {
			ids[key] = ingredient.ID
		}
	}
	for _, line := range lines {
		if _, ok := ids[strings.ToLower(line.Name)]; !ok {
			return nil, fmt.Errorf("line %d: %w: %q", line.Number, inventory.ErrUnknownIngredient, line.Name)
		}
	}
	return ids, nil
}

func validate(quantity, cost decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if cost.IsNegative() {
		return ErrInvalidCost
	}
	return nil
}

// IsUserError reports whether err stems from bad input rather than the store.
func IsUserError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidCost),
		errors.Is(err, ErrEmptyNote),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrMalformedLine):
		return true
	default:
		return inventory.IsUserError(err)
	}
}
