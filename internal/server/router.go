package server

import (
	"context"
	"net/http"

	"cafepos/internal/handlers"
	applog "cafepos/internal/log"
)

type route struct {
	path      string
	handler   http.HandlerFunc
	protected bool
	admin     bool
}

var routes = []route{
	{path: "/healthz", handler: handlers.Health},
	{path: "/api/login", handler: handlers.Login},
	{path: "/api/logout", handler: handlers.Logout},
	{path: "/api/me", handler: handlers.Me, protected: true},
	{path: "/api/products", handler: handlers.ProductCollection, protected: true},
	{path: "/api/products/", handler: handlers.ProductResource, protected: true},
	{path: "/api/ingredients", handler: handlers.IngredientCollection, protected: true},
	{path: "/api/ingredients/", handler: handlers.IngredientResource, protected: true},
	{path: "/api/orders", handler: handlers.Orders, protected: true},
	{path: "/api/orders/", handler: handlers.OrderResource, protected: true},
	{path: "/api/supplies", handler: handlers.Supplies, admin: true},
	{path: "/api/supplies/import", handler: handlers.ImportSupplies, admin: true},
	{path: "/api/employees", handler: handlers.Employees, admin: true},
	{path: "/api/reports/sales", handler: handlers.SalesReport, admin: true},
}

func newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	for _, r := range routes {
		var h http.Handler = r.handler
		switch {
		case r.admin:
			h = handlers.RequireAdmin(h)
		case r.protected:
			h = handlers.RequireAuthentication(h)
		}
		mux.Handle(r.path, h)
		applog.Debug(context.Background(), "route registered", "path", r.path, "protected", r.protected || r.admin, "admin", r.admin)
	}
	return mux
}
