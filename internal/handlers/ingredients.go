package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	applog "cafepos/internal/log"
	"cafepos/internal/supply"
	"cafepos/models"
)

type ingredientResponse struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	WarningThreshold decimal.Decimal `json:"warning_threshold"`
	Low              bool            `json:"low"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type ingredientRequest struct {
	Name             string           `json:"name"`
	Unit             string           `json:"unit"`
	WarningThreshold decimal.Decimal  `json:"warning_threshold"`
	CurrentStock     *decimal.Decimal `json:"current_stock"`
	OpeningCost      decimal.Decimal  `json:"opening_cost"`
}

// IngredientCollection lists ingredients with their low-stock flag and lets
// administrators register new ones.
func IngredientCollection(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "ingredient request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		listIngredients(w, r)
	case http.MethodPost:
		if adminOnly(w, r) {
			createIngredient(w, r)
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// IngredientResource reads and edits a single ingredient. Stock is not
// editable here; it moves only through orders and supplies.
func IngredientResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "ingredient request without database")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	ingredientID, rest, err := resourceID(r, "/api/ingredients")
	if err != nil || len(rest) > 0 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showIngredient(w, r, ingredientID)
	case http.MethodPut:
		if adminOnly(w, r) {
			updateIngredient(w, r, ingredientID)
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func listIngredients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := database.WithContext(ctx).Order("id asc")

	var results []models.Ingredient
	if err := query.Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list ingredients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}

	lowOnly := r.URL.Query().Get("low") == "true"
	responses := make([]ingredientResponse, 0, len(results))
	for _, ingredient := range results {
		if lowOnly && !ingredient.Low() {
			continue
		}
		responses = append(responses, projectIngredient(ingredient))
	}
	writeJSON(w, http.StatusOK, responses)
}

func showIngredient(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	var ingredient models.Ingredient
	if err := database.WithContext(ctx).First(&ingredient, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}
	writeJSON(w, http.StatusOK, projectIngredient(ingredient))
}

func createIngredient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if supplies == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	var payload ingredientRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(ctx, "invalid ingredient payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if message := validateIngredient(payload); message != "" {
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}

	opening := decimal.Zero
	if payload.CurrentStock != nil {
		opening = *payload.CurrentStock
	}
	created, err := supplies.Register(ctx, models.Ingredient{
		Name:             strings.TrimSpace(payload.Name),
		Unit:             strings.TrimSpace(payload.Unit),
		WarningThreshold: payload.WarningThreshold,
	}, opening, payload.OpeningCost)
	if err != nil {
		if supply.IsUserError(err) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		applog.Error(ctx, "failed to create ingredient", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create ingredient")
		return
	}
	writeJSON(w, http.StatusCreated, projectIngredient(created))
}

func updateIngredient(w http.ResponseWriter, r *http.Request, ingredientID uint) {
	ctx := r.Context()
	var payload ingredientRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(ctx, "invalid ingredient payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.CurrentStock != nil {
		writeJSONError(w, http.StatusBadRequest, "current_stock changes only through orders and supplies")
		return
	}
	if message := validateIngredient(payload); message != "" {
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}

	var ingredient models.Ingredient
	if err := database.WithContext(ctx).Select("id").First(&ingredient, ingredientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load ingredient for update", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}

	updates := map[string]any{
		"name":              strings.TrimSpace(payload.Name),
		"unit":              strings.TrimSpace(payload.Unit),
		"warning_threshold": payload.WarningThreshold,
	}
	if err := database.WithContext(ctx).Model(&ingredient).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update ingredient")
		return
	}

	showIngredient(w, r, ingredientID)
}

func validateIngredient(payload ingredientRequest) string {
	switch {
	case strings.TrimSpace(payload.Name) == "":
		return "name is required"
	case strings.TrimSpace(payload.Unit) == "":
		return "unit is required"
	case payload.WarningThreshold.IsNegative():
		return "warning_threshold must not be negative"
	case payload.CurrentStock != nil && payload.CurrentStock.IsNegative():
		return "current_stock must not be negative"
	default:
		return ""
	}
}

func projectIngredient(ingredient models.Ingredient) ingredientResponse {
	return ingredientResponse{
		ID:               ingredient.ID,
		Name:             ingredient.Name,
		Unit:             ingredient.Unit,
		CurrentStock:     ingredient.CurrentStock,
		WarningThreshold: ingredient.WarningThreshold,
		Low:              ingredient.Low(),
		UpdatedAt:        ingredient.UpdatedAt,
	}
}
