package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	applog "cafepos/internal/log"
	"cafepos/models"
)

var (
	errReportUnknownPeriod = errors.New("reports: unknown period")
	nowFunc                = time.Now
)

type salesReportResponse struct {
	Period string          `json:"period"`
	Since  time.Time       `json:"since"`
	Until  time.Time       `json:"until"`
	Total  decimal.Decimal `json:"total"`
	Count  int64           `json:"count"`
}

type salesTotals struct {
	Total decimal.NullDecimal
	Count int64
}

// SalesReport sums paid orders over the last day, week or month.
func SalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	report, err := buildSalesReport(r, r.URL.Query().Get("period"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrInvalidDB):
			writeJSONError(w, http.StatusServiceUnavailable, "reporting is unavailable because no database connection is configured")
		case errors.Is(err, errReportUnknownPeriod):
			writeJSONError(w, http.StatusBadRequest, "period must be day, week or month")
		default:
			applog.Error(r.Context(), "failed to build sales report", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to build the sales report")
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func reportWindow(period string, now time.Time) (string, time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "", "day":
		return "day", now.AddDate(0, 0, -1), nil
	case "week":
		return "week", now.AddDate(0, 0, -7), nil
	case "month":
		return "month", now.AddDate(0, -1, 0), nil
	default:
		return "", time.Time{}, errReportUnknownPeriod
	}
}

func buildSalesReport(r *http.Request, period string) (salesReportResponse, error) {
	if database == nil {
		return salesReportResponse{}, gorm.ErrInvalidDB
	}

	now := nowFunc().UTC()
	name, since, err := reportWindow(period, now)
	if err != nil {
		return salesReportResponse{}, err
	}

	var totals salesTotals
	err = database.WithContext(r.Context()).
		Model(&models.Order{}).
		Select("SUM(total_amount) AS total, COUNT(*) AS count").
		Where("status = ? AND order_date >= ? AND order_date <= ?", models.OrderStatusPaid, since, now).
		Scan(&totals).Error
	if err != nil {
		return salesReportResponse{}, err
	}

	total := decimal.Zero
	if totals.Total.Valid {
		total = totals.Total.Decimal
	}
	return salesReportResponse{Period: name, Since: since, Until: now, Total: total, Count: totals.Count}, nil
}
