package handlers

import (
	"net/http"
	"strings"
	"time"

	"cafepos/internal/auth"
	applog "cafepos/internal/log"
	"cafepos/models"
)

const minPasswordLength = 6

type employeeRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type employeeResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Employees lists staff accounts and creates new ones.
func Employees(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		listEmployees(w, r)
	case http.MethodPost:
		createEmployee(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func listEmployees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var results []models.Employee
	if err := database.WithContext(ctx).Order("id asc").Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list employees", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load employees")
		return
	}

	responses := make([]employeeResponse, 0, len(results))
	for _, employee := range results {
		responses = append(responses, projectEmployee(employee))
	}
	writeJSON(w, http.StatusOK, responses)
}

func createEmployee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload employeeRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(ctx, "invalid employee payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	name := strings.TrimSpace(payload.Name)
	phone := strings.TrimSpace(payload.Phone)
	role := models.NormalizeRole(payload.Role)
	switch {
	case name == "":
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	case phone == "":
		writeJSONError(w, http.StatusBadRequest, "phone is required")
		return
	case strings.TrimSpace(payload.Role) != "" && !strings.EqualFold(strings.TrimSpace(payload.Role), role):
		writeJSONError(w, http.StatusBadRequest, "role must be Barista or Admin")
		return
	case len(payload.Password) < minPasswordLength:
		writeJSONError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	var existing int64
	if err := database.WithContext(ctx).Model(&models.Employee{}).Where("phone = ?", phone).Count(&existing).Error; err != nil {
		applog.Error(ctx, "failed to check employee phone", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create employee")
		return
	}
	if existing > 0 {
		writeJSONError(w, http.StatusConflict, "an employee with this phone already exists")
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		applog.Error(ctx, "failed to hash password", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create employee")
		return
	}

	employee := models.Employee{Name: name, Phone: phone, Role: role, PasswordHash: hash, IsActive: true}
	if err := database.WithContext(ctx).Create(&employee).Error; err != nil {
		applog.Error(ctx, "failed to create employee", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create employee")
		return
	}

	applog.Info(ctx, "employee created", "id", employee.ID, "role", employee.Role)
	writeJSON(w, http.StatusCreated, projectEmployee(employee))
}

func projectEmployee(employee models.Employee) employeeResponse {
	return employeeResponse{
		ID:        employee.ID,
		Name:      employee.Name,
		Phone:     employee.Phone,
		Role:      employee.Role,
		IsActive:  employee.IsActive,
		CreatedAt: employee.CreatedAt,
	}
}
