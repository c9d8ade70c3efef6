package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"cafepos/internal/auth"
	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/internal/supply"
	"cafepos/models"
)

const (
	sessionAuthenticatedKey = "auth:authenticated"
	sessionEmployeeIDKey    = "auth:employee:id"
	sessionEmployeeNameKey  = "auth:employee:name"
	sessionEmployeeRoleKey  = "auth:employee:role"

	defaultShopName = "Café"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	engine         *inventory.Engine
	supplies       *supply.Service
	tokens         *auth.Tokens
	shopName       = defaultShopName

	errInvalidCredentials = errors.New("handlers: invalid phone or password")
)

// Dependencies are the shared services used by the HTTP handlers.
type Dependencies struct {
	Sessions *scs.SessionManager
	Database *gorm.DB
	Engine   *inventory.Engine
	Supplies *supply.Service
	Tokens   *auth.Tokens
	ShopName string
}

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(deps Dependencies) {
	sessionManager = deps.Sessions
	database = deps.Database
	engine = deps.Engine
	supplies = deps.Supplies
	tokens = deps.Tokens
	shopName = deps.ShopName
	if strings.TrimSpace(shopName) == "" {
		shopName = defaultShopName
	}
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Employee  auth.Identity `json:"employee"`
}

// Login checks an employee's phone and password, starts a session and
// returns a bearer token for API clients.
func Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if database == nil {
		applog.Debug(r.Context(), "login attempted without database")
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not available")
		return
	}

	var payload loginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		applog.Debug(r.Context(), "invalid login payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	phone := strings.TrimSpace(payload.Phone)
	if phone == "" || payload.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "phone and password are required")
		return
	}

	employee, err := authenticate(r.Context(), phone, payload.Password)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			applog.Info(r.Context(), "login rejected", "phone", phone)
			writeJSONError(w, http.StatusUnauthorized, "invalid phone or password")
			return
		}
		applog.Error(r.Context(), "failed to load employee during login", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}

	identity := auth.IdentityOf(employee)
	if sessionManager != nil {
		if err := establishSession(r, identity); err != nil {
			applog.Error(r.Context(), "failed to establish session", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
			return
		}
	}

	response := loginResponse{Employee: identity}
	if tokens != nil {
		token, expires, err := tokens.Issue(identity)
		if err != nil {
			applog.Error(r.Context(), "failed to issue token", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
			return
		}
		response.Token = token
		response.ExpiresAt = &expires
	}

	applog.Info(r.Context(), "employee signed in", "employee_id", identity.EmployeeID, "role", identity.Role)
	writeJSON(w, http.StatusOK, response)
}

func authenticate(ctx context.Context, phone, password string) (models.Employee, error) {
	var employee models.Employee
	err := database.WithContext(ctx).Where("phone = ? AND is_active = ?", phone, true).First(&employee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Employee{}, errInvalidCredentials
		}
		return models.Employee{}, err
	}
	if !auth.CheckPassword(employee.PasswordHash, password) {
		return models.Employee{}, errInvalidCredentials
	}
	return employee, nil
}

func establishSession(r *http.Request, identity auth.Identity) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionEmployeeIDKey, int(identity.EmployeeID))
	sessionManager.Put(r.Context(), sessionEmployeeNameKey, identity.Name)
	sessionManager.Put(r.Context(), sessionEmployeeRoleKey, identity.Role)
	return nil
}

// RequireAuthentication admits requests carrying a valid bearer token or an
// authenticated session and attaches the employee identity to the context.
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requestIdentity(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := auth.WithIdentity(r.Context(), identity)
		ctx = applog.WithAttrs(ctx, "employee_id", identity.EmployeeID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin admits only authenticated administrators.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuthentication(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := auth.FromContext(r.Context())
		if !identity.IsAdmin() {
			applog.Info(r.Context(), "admin route denied", "path", r.URL.Path, "role", identity.Role)
			writeJSONError(w, http.StatusForbidden, "access denied")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func requestIdentity(r *http.Request) (auth.Identity, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokens == nil {
			return auth.Identity{}, false
		}
		identity, err := tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			applog.Debug(r.Context(), "bearer token rejected", "error", err)
			return auth.Identity{}, false
		}
		return identity, true
	}

	if !ActiveSession(r) {
		return auth.Identity{}, false
	}
	return auth.Identity{
		EmployeeID: uint(sessionManager.GetInt(r.Context(), sessionEmployeeIDKey)),
		Name:       sessionManager.GetString(r.Context(), sessionEmployeeNameKey),
		Role:       sessionManager.GetString(r.Context(), sessionEmployeeRoleKey),
	}, true
}

// ActiveSession returns true when the current request has an authenticated session.
func ActiveSession(r *http.Request) bool {
	if sessionManager == nil {
		return false
	}
	return sessionManager.GetBool(r.Context(), sessionAuthenticatedKey) && sessionManager.GetInt(r.Context(), sessionEmployeeIDKey) > 0
}

// Logout destroys the current session. Bearer tokens expire on their own.
func Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me reports the signed-in employee.
func Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// adminOnly writes 403 and returns false unless the caller is an administrator.
func adminOnly(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin() {
		applog.Info(r.Context(), "admin action denied", "path", r.URL.Path, "method", r.Method)
		writeJSONError(w, http.StatusForbidden, "access denied")
		return false
	}
	return true
}
