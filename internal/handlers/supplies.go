package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/internal/supply"
	"cafepos/models"
)

const maxNoteSize = 10 << 20

type supplyRequest struct {
	IngredientID uint            `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Cost         decimal.Decimal `json:"cost"`
	SupplyDate   *time.Time      `json:"supply_date"`
}

type supplyResponse struct {
	ID           uint            `json:"id"`
	IngredientID uint            `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Cost         decimal.Decimal `json:"cost"`
	SupplyDate   time.Time       `json:"supply_date"`
}

// Supplies lists recent deliveries and records new ones.
func Supplies(w http.ResponseWriter, r *http.Request) {
	if database == nil || supplies == nil {
		applog.Debug(r.Context(), "supply request without supply service")
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		listSupplies(w, r)
	case http.MethodPost:
		receiveSupply(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func listSupplies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	var results []models.Supply
	if err := database.WithContext(ctx).
		Preload("Ingredient").
		Order("supply_date desc, id desc").
		Limit(limit).
		Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list supplies", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load supplies")
		return
	}

	responses := make([]supplyResponse, 0, len(results))
	for _, item := range results {
		responses = append(responses, projectSupply(item))
	}
	writeJSON(w, http.StatusOK, responses)
}

func receiveSupply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload supplyRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(ctx, "invalid supply payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.IngredientID == 0 {
		writeJSONError(w, http.StatusBadRequest, "ingredient_id is required")
		return
	}

	receipt := supply.Receipt{IngredientID: payload.IngredientID, Quantity: payload.Quantity, Cost: payload.Cost}
	if payload.SupplyDate != nil {
		receipt.Date = *payload.SupplyDate
	}
	recorded, err := supplies.Receive(ctx, receipt)
	if err != nil {
		respondSupplyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectSupply(recorded))
}

// ImportSupplies records every line of an uploaded delivery note (PDF or
// plain text) as one all-or-nothing batch.
func ImportSupplies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if supplies == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteSize)
	if err := r.ParseMultipartForm(maxNoteSize); err != nil {
		applog.Debug(ctx, "failed to parse delivery note upload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		applog.Error(ctx, "failed to read delivery note", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = supply.MimeTypeFromName(header.Filename)
	}
	lines, err := supply.ParseDeliveryNote(data, mimeType)
	if err != nil {
		respondSupplyError(w, r, err)
		return
	}

	var date time.Time
	if raw := strings.TrimSpace(r.FormValue("supply_date")); raw != "" {
		if date, err = time.Parse(time.DateOnly, raw); err != nil {
			writeJSONError(w, http.StatusBadRequest, "supply_date must be YYYY-MM-DD")
			return
		}
	}

	recorded, err := supplies.ReceiveNote(ctx, lines, date)
	if err != nil {
		respondSupplyError(w, r, err)
		return
	}

	responses := make([]supplyResponse, 0, len(recorded))
	for _, item := range recorded {
		responses = append(responses, projectSupply(item))
	}
	applog.Info(ctx, "delivery note imported", "file", header.Filename, "lines", len(recorded))
	writeJSON(w, http.StatusCreated, responses)
}

func respondSupplyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrUnknownIngredient):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case supply.IsUserError(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrTransientStore):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "the supply could not be recorded, please retry")
	default:
		applog.Error(r.Context(), "failed to record supply", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to record supply")
	}
}

func projectSupply(item models.Supply) supplyResponse {
	response := supplyResponse{
		ID:           item.ID,
		IngredientID: item.IngredientID,
		Quantity:     item.QuantityAdded,
		Cost:         item.Cost,
		SupplyDate:   item.SupplyDate,
	}
	if item.Ingredient != nil {
		response.Ingredient = item.Ingredient.Name
	}
	return response
}
