package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/models"
)

var (
	errProductNotFound  = errors.New("products: product not found")
	errCategoryNotFound = errors.New("products: category not found")
)

type recipeLinePayload struct {
	IngredientID     uint            `json:"ingredient_id"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
}

type recipeLineResponse struct {
	IngredientID     uint            `json:"ingredient_id"`
	Ingredient       string          `json:"ingredient,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
}

type productResponse struct {
	ID           uint                 `json:"id"`
	CategoryID   uint                 `json:"category_id"`
	Category     string               `json:"category,omitempty"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Price        decimal.Decimal      `json:"price"`
	IsActive     bool                 `json:"is_active"`
	MaxAvailable *int64               `json:"max_available"`
	Recipe       []recipeLineResponse `json:"recipe,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type productRequest struct {
	CategoryID  uint                `json:"category_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	IsActive    *bool               `json:"is_active"`
	Recipe      []recipeLinePayload `json:"recipe"`
}

// ProductCollection lists products with their availability and lets
// administrators add new ones.
func ProductCollection(w http.ResponseWriter, r *http.Request) {
	if database == nil || engine == nil {
		applog.Debug(r.Context(), "product request without inventory engine")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		listProducts(w, r)
	case http.MethodPost:
		if adminOnly(w, r) {
			createProduct(w, r)
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// ProductResource serves a single product and its recipe.
func ProductResource(w http.ResponseWriter, r *http.Request) {
	if database == nil || engine == nil {
		applog.Debug(r.Context(), "product request without inventory engine")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	productID, rest, err := resourceID(r, "/api/products")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if len(rest) == 1 && rest[0] == "recipes" {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		if adminOnly(w, r) {
			replaceRecipe(w, r, productID)
		}
		return
	}
	if len(rest) > 0 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showProduct(w, r, productID)
	case http.MethodPut:
		if adminOnly(w, r) {
			updateProduct(w, r, productID)
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID, err := parseOptionalUint(r.URL.Query().Get("category_id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := engine.ListProductsWithAvailability(ctx, categoryID)
	if err != nil {
		applog.Error(ctx, "failed to list products", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load products")
		return
	}

	responses := make([]productResponse, 0, len(products))
	for _, item := range products {
		responses = append(responses, projectProduct(item.Product, item.MaxAvailable))
	}
	writeJSON(w, http.StatusOK, responses)
}

func showProduct(w http.ResponseWriter, r *http.Request, productID uint) {
	ctx := r.Context()
	product, err := loadProduct(ctx, database, productID)
	if err != nil {
		if errors.Is(err, errProductNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load product", "error", err, "id", productID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load product")
		return
	}

	available, err := engine.MaxAvailable(ctx, productID)
	if err != nil {
		applog.Error(ctx, "failed to compute availability", "error", err, "id", productID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load product")
		return
	}
	writeJSON(w, http.StatusOK, projectProduct(product, available))
}

func createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload productRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(ctx, "invalid product payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if message := validateProduct(payload); message != "" {
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}
	if message := validateRecipe(payload.Recipe); message != "" {
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}

	product := models.Product{
		CategoryID:  payload.CategoryID,
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
		Price:       payload.Price,
		IsActive:    true,
	}
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCategory(tx, payload.CategoryID); err != nil {
			return err
		}
		if err := tx.Omit("Recipe", "Category").Create(&product).Error; err != nil {
			return err
		}
		if payload.IsActive != nil && !*payload.IsActive {
			if err := tx.Model(&product).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return writeRecipe(tx, product.ID, payload.Recipe)
	})
	if err != nil {
		respondCatalogError(w, r, err, "unable to create product")
		return
	}

	created, err := loadProduct(ctx, database, product.ID)
	if err != nil {
		applog.Error(ctx, "failed to reload product", "error", err, "id", product.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load created product")
		return
	}
	available, err := engine.MaxAvailable(ctx, product.ID)
	if err != nil {
		applog.Error(ctx, "failed to compute availability", "error", err, "id", product.ID)
	}
	applog.Info(ctx, "product created", "id", product.ID, "name", product.Name)
	writeJSON(w, http.StatusCreated, projectProduct(created, available))
}

func updateProduct(w http.ResponseWriter, r *http.Request, productID uint) {
	ctx := r.Context()
	var payload productRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(ctx, "invalid product payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Recipe != nil {
		writeJSONError(w, http.StatusBadRequest, "recipes are replaced through /api/products/{id}/recipes")
		return
	}
	if message := validateProduct(payload); message != "" {
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}

	updates := map[string]any{
		"category_id": payload.CategoryID,
		"name":        strings.TrimSpace(payload.Name),
		"description": strings.TrimSpace(payload.Description),
		"price":       payload.Price,
	}
	if payload.IsActive != nil {
		updates["is_active"] = *payload.IsActive
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id").First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProductNotFound
			}
			return err
		}
		if err := ensureCategory(tx, payload.CategoryID); err != nil {
			return err
		}
		return tx.Model(&product).Updates(updates).Error
	})
	if err != nil {
		respondCatalogError(w, r, err, "unable to update product")
		return
	}

	showProduct(w, r, productID)
}

func replaceRecipe(w http.ResponseWriter, r *http.Request, productID uint) {
	ctx := r.Context()
	var lines []recipeLinePayload
	if err := decodeJSON(w, r, &lines); err != nil {
		applog.Debug(ctx, "invalid recipe payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if message := validateRecipe(lines); message != "" {
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id").First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProductNotFound
			}
			return err
		}
		if err := tx.Where("product_id = ?", productID).Delete(&models.RecipeLine{}).Error; err != nil {
			return err
		}
		return writeRecipe(tx, productID, lines)
	})
	if err != nil {
		respondCatalogError(w, r, err, "unable to replace recipe")
		return
	}

	applog.Info(ctx, "recipe replaced", "product_id", productID, "lines", len(lines))
	showProduct(w, r, productID)
}

func writeRecipe(tx *gorm.DB, productID uint, lines []recipeLinePayload) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.IngredientID)
	}
	var found int64
	if err := tx.Model(&models.Ingredient{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return err
	}
	if found != int64(len(ids)) {
		return inventory.ErrUnknownIngredient
	}

	records := make([]models.RecipeLine, 0, len(lines))
	for _, line := range lines {
		records = append(records, models.RecipeLine{
			ProductID:        productID,
			IngredientID:     line.IngredientID,
			QuantityRequired: line.QuantityRequired,
		})
	}
	return tx.Omit("Ingredient").Create(&records).Error
}

func ensureCategory(tx *gorm.DB, categoryID uint) error {
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errCategoryNotFound
	}
	return nil
}

func loadProduct(ctx context.Context, db *gorm.DB, productID uint) (models.Product, error) {
	var product models.Product
	err := db.WithContext(ctx).
		Preload("Category").
		Preload("Recipe", func(tx *gorm.DB) *gorm.DB { return tx.Order("ingredient_id asc") }).
		Preload("Recipe.Ingredient").
		First(&product, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Product{}, errProductNotFound
		}
		return models.Product{}, err
	}
	return product, nil
}

func validateProduct(payload productRequest) string {
	switch {
	case strings.TrimSpace(payload.Name) == "":
		return "name is required"
	case payload.CategoryID == 0:
		return "category_id is required"
	case payload.Price.IsNegative():
		return "price must not be negative"
	default:
		return ""
	}
}

func validateRecipe(lines []recipeLinePayload) string {
	seen := make(map[uint]bool, len(lines))
	for i, line := range lines {
		if line.IngredientID == 0 {
			return fmt.Sprintf("recipe line %d: ingredient_id is required", i+1)
		}
		if !line.QuantityRequired.IsPositive() {
			return fmt.Sprintf("recipe line %d: quantity_required must be positive", i+1)
		}
		if seen[line.IngredientID] {
			return fmt.Sprintf("recipe line %d: ingredient %d is listed twice", i+1, line.IngredientID)
		}
		seen[line.IngredientID] = true
	}
	return ""
}

func respondCatalogError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, errProductNotFound):
		http.NotFound(w, r)
	case errors.Is(err, errCategoryNotFound):
		writeJSONError(w, http.StatusBadRequest, "unknown category")
	case errors.Is(err, inventory.ErrUnknownIngredient):
		writeJSONError(w, http.StatusBadRequest, "unknown ingredient in recipe")
	default:
		applog.Error(r.Context(), message, "error", err)
		writeJSONError(w, http.StatusInternalServerError, message)
	}
}

func projectProduct(product models.Product, available *int64) productResponse {
	response := productResponse{
		ID:           product.ID,
		CategoryID:   product.CategoryID,
		Name:         product.Name,
		Description:  product.Description,
		Price:        product.Price,
		IsActive:     product.IsActive,
		MaxAvailable: available,
		UpdatedAt:    product.UpdatedAt,
	}
	if product.Category != nil {
		response.Category = product.Category.Name
	}
	for _, line := range product.Recipe {
		item := recipeLineResponse{IngredientID: line.IngredientID, QuantityRequired: line.QuantityRequired}
		if line.Ingredient != nil {
			item.Ingredient = line.Ingredient.Name
			item.Unit = line.Ingredient.Unit
		}
		response.Recipe = append(response.Recipe, item)
	}
	return response
}
