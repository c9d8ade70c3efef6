package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cafepos/internal/db/mock"
	"cafepos/internal/events"
	"cafepos/internal/handlers"
)

func resetHandlers(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { handlers.Configure(handlers.Dependencies{}) })
}

func login(t *testing.T, handler http.Handler, phone, password string) (string, *http.Response) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"phone": phone, "password": password})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return resp.Token, rr.Result()
}

func TestNewAppliesSessionDefaults(t *testing.T) {
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock.New returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	resetHandlers(t)

	srv, err := New(Config{Addr: ":8080", Session: SessionConfig{CookieSecure: true}, Database: db})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if srv.httpServer.Addr != ":8080" {
		t.Fatalf("expected server addr :8080, got %q", srv.httpServer.Addr)
	}
	if srv.Engine() == nil {
		t.Fatal("expected order engine to be configured")
	}

	_, resp := login(t, srv.Handler(), mock.BaristaPhone, mock.BaristaPassword)
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie to be set")
	}
	if cookies[0].Name != "cafepos_session" {
		t.Fatalf("expected default session cookie name, got %q", cookies[0].Name)
	}
	if !cookies[0].Secure {
		t.Fatal("expected cookie secure flag to be true")
	}
}

func TestServerCommitsOrderAndPublishes(t *testing.T) {
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("mock.New returned error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	resetHandlers(t)

	var (
		mu        sync.Mutex
		published []events.StockChanged
	)
	publisher := events.PublisherFunc(func(_ context.Context, event events.StockChanged) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, event)
		return nil
	})

	srv, err := New(Config{Database: db, Publisher: publisher, Token: TokenConfig{Secret: "server-test"}})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	token, _ := login(t, srv.Handler(), mock.BaristaPhone, mock.BaristaPassword)

	body := []byte(`{"payment_method":"card","items":[{"product_id":2,"quantity":1},{"product_id":5,"quantity":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected order to be created, got %d: %s", rr.Code, rr.Body.String())
	}
	var order struct {
		Total string `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if order.Total != "120" {
		t.Fatalf("expected total 120, got %s", order.Total)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 || published[0].Source != events.SourceOrder {
		t.Fatalf("expected one order event, got %+v", published)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/reports/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected barista to be denied reports, got %d", rr.Code)
	}
}

func TestServerHandler(t *testing.T) {
	resetHandlers(t)
	srv, err := New(Config{Addr: ":9090"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Engine() != nil {
		t.Fatal("expected no engine without a database")
	}

	handler := srv.Handler()
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected /healthz to return 200, got %d", rr.Code)
	}
}
