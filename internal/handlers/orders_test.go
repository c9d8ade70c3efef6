package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cafepos/models"
)

func quantity(n int) *int {
	return &n
}

func placeOrder(t *testing.T, payload orderRequest) orderResponse {
	t.Helper()
	rr := serveAs(t, Orders, jsonRequest(t, http.MethodPost, "/api/orders", payload), baristaIdentity)
	expectStatus(t, rr, http.StatusCreated)
	var created orderResponse
	decodeBody(t, rr, &created)
	return created
}

func TestOrdersCommitsAndDepletesStock(t *testing.T) {
	db := withTestServices(t)

	created := placeOrder(t, orderRequest{
		PaymentMethod: "cash",
		Items: []orderItemRequest{
			{ProductID: 2},
			{ProductID: 5, Quantity: quantity(1)},
		},
	})

	if !created.Total.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected total 120, got %s", created.Total)
	}
	if created.OrderID == 0 || created.Reference == "" || len(created.Lines) != 2 {
		t.Fatalf("unexpected order %+v", created)
	}

	var order models.Order
	if err := db.First(&order, created.OrderID).Error; err != nil {
		t.Fatalf("failed to load order: %v", err)
	}
	if order.PaymentMethod != models.PaymentCash || order.EmployeeID != baristaIdentity.EmployeeID {
		t.Fatalf("unexpected stored order %+v", order)
	}

	var arabica models.Ingredient
	if err := db.First(&arabica, 1).Error; err != nil {
		t.Fatalf("failed to load ingredient: %v", err)
	}
	if !arabica.CurrentStock.Equal(decimal.RequireFromString("9.96")) {
		t.Fatalf("expected arabica stock 9.96, got %s", arabica.CurrentStock)
	}
}

func TestOrdersRejectsInsufficientStock(t *testing.T) {
	db := withTestServices(t)
	if err := db.Model(&models.Ingredient{}).Where("id = ?", 5).Update("current_stock", decimal.RequireFromString("0.03")).Error; err != nil {
		t.Fatalf("failed to lower stock: %v", err)
	}

	payload := orderRequest{Items: []orderItemRequest{{ProductID: 5, Quantity: quantity(2)}}}
	rr := serveAs(t, Orders, jsonRequest(t, http.MethodPost, "/api/orders", payload), baristaIdentity)
	expectStatus(t, rr, http.StatusConflict)

	var resp insufficientStockResponse
	decodeBody(t, rr, &resp)
	if resp.IngredientID != 5 || resp.Ingredient != "Caramel syrup" {
		t.Fatalf("unexpected shortfall %+v", resp)
	}
	if !resp.Required.Equal(decimal.RequireFromString("0.04")) || !resp.Available.Equal(decimal.RequireFromString("0.03")) {
		t.Fatalf("unexpected shortfall amounts %+v", resp)
	}

	var orders int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orders != 3 {
		t.Fatalf("expected no new order, got %d orders", orders)
	}
}

func TestOrdersRejectsInvalidRequests(t *testing.T) {
	withTestServices(t)

	tests := []struct {
		name    string
		payload orderRequest
		want    int
	}{
		{name: "empty", payload: orderRequest{}, want: http.StatusBadRequest},
		{name: "unknown product", payload: orderRequest{Items: []orderItemRequest{{ProductID: 999}}}, want: http.StatusBadRequest},
		{name: "zero quantity", payload: orderRequest{Items: []orderItemRequest{{ProductID: 1, Quantity: quantity(0)}}}, want: http.StatusBadRequest},
		{name: "bad payment", payload: orderRequest{PaymentMethod: "barter", Items: []orderItemRequest{{ProductID: 1}}}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveAs(t, Orders, jsonRequest(t, http.MethodPost, "/api/orders", tt.payload), baristaIdentity)
			expectStatus(t, rr, tt.want)
		})
	}

	rr := serveAs(t, Orders, httptest.NewRequest(http.MethodGet, "/api/orders", nil), baristaIdentity)
	expectStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestOrderResourceAndReceipt(t *testing.T) {
	withTestServices(t)

	created := placeOrder(t, orderRequest{
		PaymentMethod: "App",
		Items:         []orderItemRequest{{ProductID: 5, Quantity: quantity(2)}},
	})
	target := fmt.Sprintf("/api/orders/%d", created.OrderID)

	rr := serveAs(t, OrderResource, httptest.NewRequest(http.MethodGet, target, nil), baristaIdentity)
	expectStatus(t, rr, http.StatusOK)
	var shown orderResponse
	decodeBody(t, rr, &shown)
	if shown.Reference != created.Reference || shown.Status != models.OrderStatusPaid || shown.PaymentMethod != models.PaymentApp {
		t.Fatalf("unexpected order %+v", shown)
	}
	if len(shown.Lines) != 1 || shown.Lines[0].Product != "Caramel Latte" || !shown.Lines[0].LineTotal.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected lines %+v", shown.Lines)
	}

	rr = serveAs(t, OrderResource, httptest.NewRequest(http.MethodGet, target+"/receipt", nil), baristaIdentity)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html receipt, got %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{"Test Café", "Caramel Latte", created.Reference} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected receipt to contain %q, got %s", want, body)
		}
	}

	rr = serveAs(t, OrderResource, httptest.NewRequest(http.MethodGet, target, nil), traineeIdentity)
	expectStatus(t, rr, http.StatusNotFound)

	rr = serveAs(t, OrderResource, httptest.NewRequest(http.MethodGet, target, nil), adminIdentity)
	expectStatus(t, rr, http.StatusOK)

	for _, missing := range []string{"/api/orders/999", target + "/invoice"} {
		rr = serveAs(t, OrderResource, httptest.NewRequest(http.MethodGet, missing, nil), adminIdentity)
		expectStatus(t, rr, http.StatusNotFound)
	}
}
