package inventory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cafepos/internal/db"
	"cafepos/models"
)

var testDatabases atomic.Int64

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:inventory-test-%d?mode=memory&cache=shared", testDatabases.Add(1))
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

type fixture struct {
	db       *gorm.DB
	engine   *Engine
	employee models.Employee
	category models.Category
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	database := newTestDatabase(t)
	employee := models.Employee{Name: "Olena", Role: models.RoleBarista, Phone: "+380500000001", PasswordHash: "x"}
	if err := database.Create(&employee).Error; err != nil {
		t.Fatalf("failed to create employee: %v", err)
	}
	category := models.Category{Name: "Coffee"}
	if err := database.Create(&category).Error; err != nil {
		t.Fatalf("failed to create category: %v", err)
	}

	engine, err := New(database, opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	engine.sleep = func(time.Duration) {}

	return &fixture{db: database, engine: engine, employee: employee, category: category}
}

func (f *fixture) ingredient(t *testing.T, name, stock string) models.Ingredient {
	t.Helper()
	ingredient := models.Ingredient{Name: name, CurrentStock: dec(stock), Unit: "kg"}
	if err := f.db.Create(&ingredient).Error; err != nil {
		t.Fatalf("failed to create ingredient %s: %v", name, err)
	}
	return ingredient
}

type use struct {
	ingredient models.Ingredient
	quantity   string
}

func (f *fixture) product(t *testing.T, name, price string, recipe ...use) models.Product {
	t.Helper()
	product := models.Product{CategoryID: f.category.ID, Name: name, Price: dec(price), IsActive: true}
	for _, r := range recipe {
		product.Recipe = append(product.Recipe, models.RecipeLine{
			IngredientID:     r.ingredient.ID,
			QuantityRequired: dec(r.quantity),
		})
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("failed to create product %s: %v", name, err)
	}
	return product
}

func (f *fixture) stock(t *testing.T, id uint) decimal.Decimal {
	t.Helper()
	var ingredient models.Ingredient
	if err := f.db.First(&ingredient, id).Error; err != nil {
		t.Fatalf("failed to load ingredient %d: %v", id, err)
	}
	return ingredient.CurrentStock
}

func (f *fixture) orderCount(t *testing.T) (orders, lines int64) {
	t.Helper()
	if err := f.db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if err := f.db.Model(&models.OrderLine{}).Count(&lines).Error; err != nil {
		t.Fatalf("failed to count order lines: %v", err)
	}
	return orders, lines
}

func (f *fixture) order(t *testing.T, lines ...LineRequest) (Receipt, error) {
	t.Helper()
	return f.engine.CommitOrder(context.Background(), OrderRequest{
		EmployeeID: f.employee.ID,
		Lines:      lines,
	})
}
