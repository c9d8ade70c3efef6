package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cafepos/internal/events"
	applog "cafepos/internal/log"
	"cafepos/models"
)

// LineRequest asks for Quantity units of one product.
type LineRequest struct {
	ProductID uint
	Quantity  int
}

// OrderRequest is an order as submitted at the till. EmployeeID is trusted.
type OrderRequest struct {
	EmployeeID    uint
	PaymentMethod string
	Lines         []LineRequest
}

// Receipt describes a committed order.
type Receipt struct {
	OrderID   uint
	Reference string
	Total     decimal.Decimal
	Lines     []models.OrderLine
	// Ingredients lists the ingredients whose stock the order consumed.
	Ingredients []uint
}

// CommitOrder prices the request, checks aggregated ingredient demand against
// stock, and then atomically decrements stock and records the order. Either
// all of it happens or none of it does. Once started, a commit runs to
// completion even if ctx is cancelled.
func (e *Engine) CommitOrder(ctx context.Context, req OrderRequest) (Receipt, error) {
	payment, err := validateOrder(req)
	if err != nil {
		return Receipt{}, err
	}

	ctx = applog.WithAttrs(context.WithoutCancel(ctx), "employee_id", req.EmployeeID)

	var receipt Receipt
	err = e.retry(ctx, "commit order", func() error {
		committed, err := e.commitOnce(ctx, req, payment)
		if err != nil {
			return err
		}
		receipt = committed
		return nil
	})
	if err != nil {
		if IsUserError(err) {
			applog.Info(ctx, "order rejected", "error", err)
		}
		return Receipt{}, err
	}

	ctx = applog.WithAttrs(ctx, "order_id", receipt.OrderID, "reference", receipt.Reference)
	applog.Info(ctx, "order committed", "total", receipt.Total.StringFixed(2), "lines", len(receipt.Lines))
	e.publish(ctx, events.StockChanged{
		Source:      events.SourceOrder,
		Reference:   receipt.Reference,
		Ingredients: receipt.Ingredients,
		At:          e.opts.Now(),
	})
	return receipt, nil
}

func validateOrder(req OrderRequest) (string, error) {
	if len(req.Lines) == 0 {
		return "", ErrEmptyOrder
	}
	for i, line := range req.Lines {
		if line.Quantity < 1 {
			return "", fmt.Errorf("%w: line %d has quantity %d", ErrInvalidQuantity, i+1, line.Quantity)
		}
	}
	payment, ok := models.NormalizePaymentMethod(req.PaymentMethod)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	return payment, nil
}

func (e *Engine) commitOnce(ctx context.Context, req OrderRequest, payment string) (Receipt, error) {
	var receipt Receipt
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.applyLockTimeout(tx); err != nil {
			return err
		}

		prices, err := loadPrices(ctx, tx, req.Lines)
		if err != nil {
			return err
		}

		productIDs := sortedIDs(prices)
		index, err := loadRecipeIndex(ctx, tx, productIDs)
		if err != nil {
			return err
		}
		demand := index.Demand(req.Lines)
		ingredientIDs := sortedIDs(demand)

		levels, err := e.ledger.Lock(ctx, tx, ingredientIDs)
		if err != nil {
			return err
		}
		if err := checkStock(ingredientIDs, demand, levels); err != nil {
			return err
		}

		for _, id := range ingredientIDs {
			observed := levels[id]
			if err := e.ledger.swap(ctx, tx, observed, observed.CurrentStock.Sub(demand[id])); err != nil {
				return err
			}
		}

		order := models.Order{
			Reference:     uuid.NewString(),
			EmployeeID:    req.EmployeeID,
			OrderDate:     e.opts.Now(),
			PaymentMethod: payment,
			Status:        models.OrderStatusPaid,
		}
		lines := make([]models.OrderLine, 0, len(req.Lines))
		total := decimal.Zero
		for _, line := range req.Lines {
			orderLine := models.OrderLine{
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				PriceAtSale: prices[line.ProductID],
			}
			total = total.Add(orderLine.LineTotal())
			lines = append(lines, orderLine)
		}
		order.TotalAmount = total

		if err := tx.Omit("Lines", "Employee").Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if err := tx.Omit("Product").Create(&lines).Error; err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}

		receipt = Receipt{
			OrderID:     order.ID,
			Reference:   order.Reference,
			Total:       total,
			Lines:       lines,
			Ingredients: ingredientIDs,
		}
		return nil
	})
	return receipt, err
}

// loadPrices reads every referenced product and captures its current price.
func loadPrices(ctx context.Context, tx *gorm.DB, lines []LineRequest) (map[uint]decimal.Decimal, error) {
	wanted := make(map[uint]struct{}, len(lines))
	for _, line := range lines {
		wanted[line.ProductID] = struct{}{}
	}

	var products []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", sortedIDs(wanted)).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	prices := make(map[uint]decimal.Decimal, len(products))
	for _, product := range products {
		if product.IsActive {
			prices[product.ID] = product.Price
		}
	}
	for _, line := range lines {
		if _, ok := prices[line.ProductID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, line.ProductID)
		}
	}
	return prices, nil
}

func checkStock(ids []uint, demand map[uint]decimal.Decimal, levels map[uint]models.Ingredient) error {
	for _, id := range ids {
		need := demand[id]
		ingredient, ok := levels[id]
		if !ok {
			return &InsufficientStockError{IngredientID: id, Required: need, Available: decimal.Zero}
		}
		if ingredient.CurrentStock.LessThan(need) {
			return &InsufficientStockError{
				IngredientID: id,
				Name:         ingredient.Name,
				Unit:         ingredient.Unit,
				Required:     need,
				Available:    ingredient.CurrentStock,
			}
		}
	}
	return nil
}

func (e *Engine) applyLockTimeout(tx *gorm.DB) error {
	if !isPostgres(tx) {
		return nil
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", e.opts.LockTimeout.Milliseconds())
	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event events.StockChanged) {
	if len(event.Ingredients) == 0 {
		return
	}
	if err := e.opts.Publisher.Publish(ctx, event); err != nil {
		applog.Warn(ctx, "publish stock change failed", "error", err)
	}
}

// PublishStockChange announces a stock movement committed outside CommitOrder,
// such as a supply receipt.
func (e *Engine) PublishStockChange(ctx context.Context, source string, ingredients []uint) {
	e.publish(ctx, events.StockChanged{Source: source, Ingredients: ingredients, At: e.opts.Now()})
}
