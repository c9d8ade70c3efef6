package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"cafepos/internal/auth"
	"cafepos/internal/db/mock"
	"cafepos/internal/inventory"
	"cafepos/internal/supply"
	"cafepos/models"
)

var (
	adminIdentity   = auth.Identity{EmployeeID: 1, Name: "Olena Admin", Role: models.RoleAdmin}
	baristaIdentity = auth.Identity{EmployeeID: 2, Name: "Ivan Barista", Role: models.RoleBarista}
	traineeIdentity = auth.Identity{EmployeeID: 3, Name: "Petro Trainee", Role: models.RoleBarista}
)

// withTestServices seeds a mock café database and installs it, together with
// an engine, supply service, token issuer and session manager, as the
// handler dependencies for the duration of the test.
func withTestServices(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock.New returned error: %v", err)
	}
	eng, err := inventory.New(db, inventory.Options{})
	if err != nil {
		t.Fatalf("inventory.New returned error: %v", err)
	}
	svc, err := supply.NewService(eng)
	if err != nil {
		t.Fatalf("supply.NewService returned error: %v", err)
	}
	tk, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth.NewTokens returned error: %v", err)
	}

	restore := saveDependencies()
	Configure(Dependencies{
		Sessions: scs.New(),
		Database: db,
		Engine:   eng,
		Supplies: svc,
		Tokens:   tk,
		ShopName: "Test Café",
	})
	t.Cleanup(func() {
		restore()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func withTestSessionManager(t *testing.T) *scs.SessionManager {
	t.Helper()
	original := sessionManager
	sm := scs.New()
	sessionManager = sm
	t.Cleanup(func() { sessionManager = original })
	return sm
}

func saveDependencies() func() {
	saved := Dependencies{
		Sessions: sessionManager,
		Database: database,
		Engine:   engine,
		Supplies: supplies,
		Tokens:   tokens,
		ShopName: shopName,
	}
	return func() { Configure(saved) }
}

func authorize(t *testing.T, req *http.Request, identity auth.Identity) *http.Request {
	t.Helper()
	token, _, err := tokens.Issue(identity)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// serveAs runs handler behind RequireAuthentication as identity.
func serveAs(t *testing.T, handler http.HandlerFunc, req *http.Request, identity auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	RequireAuthentication(handler).ServeHTTP(rr, authorize(t, req, identity))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}
