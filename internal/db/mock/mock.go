package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cafepos/internal/db"
	applog "cafepos/internal/log"
	"cafepos/models"
)

const (
	AdminPhone      = "+380991234567"
	AdminPassword   = "admin123"
	BaristaPhone    = "+380997654321"
	BaristaPassword = "barista123"
)

var instance atomic.Int64

// New returns an in-memory sqlite database seeded with a representative café menu.
// Every call yields an isolated database.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	dsn := fmt.Sprintf("file:cafepos-mock-%d?mode=memory&cache=shared", instance.Add(1))
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	if err := seed(ctx, database); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func seed(ctx context.Context, database *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		adminHash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		baristaHash, err := bcrypt.GenerateFromPassword([]byte(BaristaPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		employees := []*models.Employee{
			{Name: "Olena Admin", Role: models.RoleAdmin, Phone: AdminPhone, PasswordHash: string(adminHash), IsActive: true},
			{Name: "Ivan Barista", Role: models.RoleBarista, Phone: BaristaPhone, PasswordHash: string(baristaHash), IsActive: true},
			{Name: "Petro Trainee", Role: models.RoleBarista, Phone: "+380630000000", PasswordHash: string(baristaHash), IsActive: true},
		}
		for _, employee := range employees {
			if err := tx.Create(employee).Error; err != nil {
				return err
			}
		}

		coffee := models.Category{Name: "Coffee"}
		drinks := models.Category{Name: "Tea & Drinks"}
		desserts := models.Category{Name: "Desserts"}
		bakery := models.Category{Name: "Bakery"}
		for _, category := range []*models.Category{&coffee, &drinks, &desserts, &bakery} {
			if err := tx.Create(category).Error; err != nil {
				return err
			}
		}

		arabica := models.Ingredient{Name: "Arabica beans 100%", CurrentStock: dec("10"), Unit: "kg", WarningThreshold: dec("1")}
		blend := models.Ingredient{Name: "House blend beans", CurrentStock: dec("5"), Unit: "kg", WarningThreshold: dec("0.5")}
		milk := models.Ingredient{Name: "Milk 2.5%", CurrentStock: dec("40"), Unit: "l", WarningThreshold: dec("5")}
		lactoseFree := models.Ingredient{Name: "Lactose-free milk", CurrentStock: dec("10"), Unit: "l", WarningThreshold: dec("2")}
		caramel := models.Ingredient{Name: "Caramel syrup", CurrentStock: dec("5"), Unit: "l", WarningThreshold: dec("0.5")}
		earlGrey := models.Ingredient{Name: "Earl Grey tea", CurrentStock: dec("2"), Unit: "kg", WarningThreshold: dec("0.2")}
		cupS := models.Ingredient{Name: "Paper cup S", CurrentStock: dec("500"), Unit: "pcs", WarningThreshold: dec("50")}
		cupL := models.Ingredient{Name: "Paper cup L", CurrentStock: dec("500"), Unit: "pcs", WarningThreshold: dec("50")}
		croissantDough := models.Ingredient{Name: "Croissant (frozen)", CurrentStock: dec("100"), Unit: "pcs", WarningThreshold: dec("10")}
		sugar := models.Ingredient{Name: "Sugar stick", CurrentStock: dec("1000"), Unit: "pcs", WarningThreshold: dec("100")}
		ingredients := []*models.Ingredient{&arabica, &blend, &milk, &lactoseFree, &caramel, &earlGrey, &cupS, &cupL, &croissantDough, &sugar}
		for _, ingredient := range ingredients {
			if err := tx.Create(ingredient).Error; err != nil {
				return err
			}
		}

		espresso := models.Product{CategoryID: coffee.ID, Name: "Espresso", Description: "Classic 30ml shot", Price: dec("40"), IsActive: true}
		americano := models.Product{CategoryID: coffee.ID, Name: "Americano", Description: "Espresso with hot water", Price: dec("45"), IsActive: true}
		cappuccino := models.Product{CategoryID: coffee.ID, Name: "Cappuccino", Description: "Espresso and foamed milk", Price: dec("60"), IsActive: true}
		latte := models.Product{CategoryID: coffee.ID, Name: "Latte", Description: "Lots of milk, a little coffee", Price: dec("65"), IsActive: true}
		caramelLatte := models.Product{CategoryID: coffee.ID, Name: "Caramel Latte", Description: "Sweet latte with syrup", Price: dec("75"), IsActive: true}
		blackTea := models.Product{CategoryID: drinks.ID, Name: "Black Tea", Description: "Classic Earl Grey", Price: dec("35"), IsActive: true}
		croissant := models.Product{CategoryID: bakery.ID, Name: "Classic Croissant", Description: "French pastry", Price: dec("55"), IsActive: true}
		cheesecake := models.Product{CategoryID: desserts.ID, Name: "Cheesecake", Description: "New York", Price: dec("90"), IsActive: true}
		products := []*models.Product{&espresso, &americano, &cappuccino, &latte, &caramelLatte, &blackTea, &croissant, &cheesecake}
		for _, product := range products {
			if err := tx.Create(product).Error; err != nil {
				return err
			}
		}

		recipes := []models.RecipeLine{
			{ProductID: espresso.ID, IngredientID: arabica.ID, QuantityRequired: dec("0.02")},
			{ProductID: espresso.ID, IngredientID: cupS.ID, QuantityRequired: dec("1")},
			{ProductID: americano.ID, IngredientID: arabica.ID, QuantityRequired: dec("0.02")},
			{ProductID: americano.ID, IngredientID: cupL.ID, QuantityRequired: dec("1")},
			{ProductID: cappuccino.ID, IngredientID: arabica.ID, QuantityRequired: dec("0.02")},
			{ProductID: cappuccino.ID, IngredientID: milk.ID, QuantityRequired: dec("0.15")},
			{ProductID: cappuccino.ID, IngredientID: cupS.ID, QuantityRequired: dec("1")},
			{ProductID: latte.ID, IngredientID: arabica.ID, QuantityRequired: dec("0.02")},
			{ProductID: latte.ID, IngredientID: milk.ID, QuantityRequired: dec("0.25")},
			{ProductID: latte.ID, IngredientID: cupL.ID, QuantityRequired: dec("1")},
			{ProductID: caramelLatte.ID, IngredientID: arabica.ID, QuantityRequired: dec("0.02")},
			{ProductID: caramelLatte.ID, IngredientID: milk.ID, QuantityRequired: dec("0.25")},
			{ProductID: caramelLatte.ID, IngredientID: caramel.ID, QuantityRequired: dec("0.02")},
			{ProductID: caramelLatte.ID, IngredientID: cupL.ID, QuantityRequired: dec("1")},
			{ProductID: blackTea.ID, IngredientID: earlGrey.ID, QuantityRequired: dec("0.01")},
			{ProductID: blackTea.ID, IngredientID: cupL.ID, QuantityRequired: dec("1")},
			{ProductID: croissant.ID, IngredientID: croissantDough.ID, QuantityRequired: dec("1")},
		}
		if err := tx.Create(&recipes).Error; err != nil {
			return err
		}

		supplies := []models.Supply{
			{IngredientID: arabica.ID, QuantityAdded: dec("10"), Cost: dec("4500"), SupplyDate: time.Now().UTC()},
			{IngredientID: milk.ID, QuantityAdded: dec("50"), Cost: dec("1500"), SupplyDate: time.Now().UTC()},
			{IngredientID: cupS.ID, QuantityAdded: dec("1000"), Cost: dec("2000"), SupplyDate: time.Now().UTC()},
		}
		if err := tx.Create(&supplies).Error; err != nil {
			return err
		}

		history := []struct {
			employee *models.Employee
			payment  string
			lines    []models.OrderLine
		}{
			{employees[1], models.PaymentCash, []models.OrderLine{
				{ProductID: americano.ID, Quantity: 1, PriceAtSale: americano.Price},
			}},
			{employees[2], models.PaymentCard, []models.OrderLine{
				{ProductID: caramelLatte.ID, Quantity: 1, PriceAtSale: caramelLatte.Price},
				{ProductID: croissant.ID, Quantity: 1, PriceAtSale: croissant.Price},
			}},
			{employees[1], models.PaymentApp, []models.OrderLine{
				{ProductID: cappuccino.ID, Quantity: 2, PriceAtSale: cappuccino.Price},
				{ProductID: cheesecake.ID, Quantity: 1, PriceAtSale: cheesecake.Price},
				{ProductID: americano.ID, Quantity: 1, PriceAtSale: americano.Price},
			}},
		}
		for _, entry := range history {
			total := decimal.Zero
			for _, line := range entry.lines {
				total = total.Add(line.LineTotal())
			}
			order := models.Order{
				Reference:     uuid.NewString(),
				EmployeeID:    entry.employee.ID,
				OrderDate:     time.Now().UTC(),
				TotalAmount:   total,
				PaymentMethod: entry.payment,
				Status:        models.OrderStatusPaid,
				Lines:         entry.lines,
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
		}

		applog.Debug(ctx, "mock database seeded")
		return nil
	})
}
