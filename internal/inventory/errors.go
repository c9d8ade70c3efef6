package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder           = errors.New("inventory: order has no lines")
	ErrInvalidQuantity      = errors.New("inventory: line quantity must be at least 1")
	ErrInvalidPaymentMethod = errors.New("inventory: unknown payment method")
	ErrUnknownProduct       = errors.New("inventory: unknown product")
	ErrUnknownIngredient    = errors.New("inventory: unknown ingredient")
	ErrInsufficientStock    = errors.New("inventory: insufficient stock")

	// ErrTransientStore marks a failure that may succeed if the whole
	// transaction is run again, such as a serialization conflict.
	ErrTransientStore = errors.New("inventory: transient store failure")
	// ErrStoreFailure marks a failure that retrying will not fix.
	ErrStoreFailure = errors.New("inventory: store failure")
)

// InsufficientStockError names the ingredient whose aggregated demand exceeds its stock.
type InsufficientStockError struct {
	IngredientID uint
	Name         string
	Unit         string
	Required     decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("#%d", e.IngredientID)
	}
	return fmt.Sprintf("inventory: insufficient stock of %s: need %s %s, have %s",
		name, e.Required.String(), e.Unit, e.Available.String())
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsUserError reports whether err is a validation failure the caller can
// correct. Such errors are detected before any mutation and are never retried.
func IsUserError(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrUnknownProduct),
		errors.Is(err, ErrUnknownIngredient),
		errors.Is(err, ErrInsufficientStock):
		return true
	default:
		return false
	}
}
