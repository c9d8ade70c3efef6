package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cafepos/internal/auth"
	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/internal/views/receipt"
	"cafepos/models"
)

type orderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  *int `json:"quantity"`
}

type orderRequest struct {
	PaymentMethod string             `json:"payment_method"`
	Items         []orderItemRequest `json:"items"`
}

type orderLineResponse struct {
	ProductID   uint            `json:"product_id"`
	Product     string          `json:"product,omitempty"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	OrderID       uint                `json:"order_id"`
	Reference     string              `json:"reference"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Status        string              `json:"status,omitempty"`
	OrderDate     *time.Time          `json:"order_date,omitempty"`
	EmployeeID    uint                `json:"employee_id,omitempty"`
	Lines         []orderLineResponse `json:"lines"`
}

type insufficientStockResponse struct {
	Error        string          `json:"error"`
	IngredientID uint            `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
}

// Orders commits a new order for the signed-in employee.
func Orders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if engine == nil {
		applog.Debug(r.Context(), "order request without inventory engine")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload orderRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(r.Context(), "invalid order payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	req := inventory.OrderRequest{
		EmployeeID:    identity.EmployeeID,
		PaymentMethod: payload.PaymentMethod,
		Lines:         make([]inventory.LineRequest, 0, len(payload.Items)),
	}
	for _, item := range payload.Items {
		quantity := 1
		if item.Quantity != nil {
			quantity = *item.Quantity
		}
		req.Lines = append(req.Lines, inventory.LineRequest{ProductID: item.ProductID, Quantity: quantity})
	}

	committed, err := engine.CommitOrder(r.Context(), req)
	if err != nil {
		respondOrderError(w, r, err)
		return
	}

	response := orderResponse{
		OrderID:   committed.OrderID,
		Reference: committed.Reference,
		Total:     committed.Total,
		Lines:     make([]orderLineResponse, 0, len(committed.Lines)),
	}
	for _, line := range committed.Lines {
		response.Lines = append(response.Lines, projectOrderLine(line))
	}
	writeJSON(w, http.StatusCreated, response)
}

func respondOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var shortfall *inventory.InsufficientStockError
	switch {
	case errors.As(err, &shortfall):
		writeJSON(w, http.StatusConflict, insufficientStockResponse{
			Error:        fmt.Sprintf("insufficient stock: %s", displayName(shortfall)),
			IngredientID: shortfall.IngredientID,
			Ingredient:   shortfall.Name,
			Required:     shortfall.Required,
			Available:    shortfall.Available,
		})
	case errors.Is(err, inventory.ErrEmptyOrder):
		writeJSONError(w, http.StatusBadRequest, "order has no items")
	case errors.Is(err, inventory.ErrUnknownProduct),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidPaymentMethod):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrTransientStore):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "the order could not be recorded, please retry")
	default:
		applog.Error(r.Context(), "failed to commit order", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to record the order")
	}
}

func displayName(shortfall *inventory.InsufficientStockError) string {
	if shortfall.Name != "" {
		return shortfall.Name
	}
	return fmt.Sprintf("ingredient #%d", shortfall.IngredientID)
}

// OrderResource shows a committed order as JSON or, under /receipt, as a
// printable HTML receipt.
func OrderResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if database == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	orderID, rest, err := resourceID(r, "/api/orders")
	if err != nil || len(rest) > 1 || (len(rest) == 1 && rest[0] != "receipt") {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	var order models.Order
	err = database.WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Preload("Lines.Product").
		Preload("Employee").
		First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load order", "error", err, "id", orderID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load order")
		return
	}

	identity, _ := auth.FromContext(ctx)
	if !identity.IsAdmin() && order.EmployeeID != identity.EmployeeID {
		applog.Debug(ctx, "order access denied", "id", orderID)
		http.NotFound(w, r)
		return
	}

	if len(rest) == 1 {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := receipt.Page(receipt.FromOrder(shopName, order)).Render(ctx, w); err != nil {
			applog.Error(ctx, "failed to render receipt", "error", err, "id", orderID)
			http.Error(w, "unable to render receipt", http.StatusInternalServerError)
		}
		return
	}

	date := order.OrderDate
	response := orderResponse{
		OrderID:       order.ID,
		Reference:     order.Reference,
		Total:         order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		OrderDate:     &date,
		EmployeeID:    order.EmployeeID,
		Lines:         make([]orderLineResponse, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		response.Lines = append(response.Lines, projectOrderLine(line))
	}
	writeJSON(w, http.StatusOK, response)
}

func projectOrderLine(line models.OrderLine) orderLineResponse {
	response := orderLineResponse{
		ProductID:   line.ProductID,
		Quantity:    line.Quantity,
		PriceAtSale: line.PriceAtSale,
		LineTotal:   line.LineTotal(),
	}
	if line.Product != nil {
		response.Product = line.Product.Name
	}
	return response
}
