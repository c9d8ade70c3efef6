package inventory

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestLedgerAdjust(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	milk := f.ingredient(t, "Milk", "1.5")
	ledger := f.engine.Ledger()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		updated, err := ledger.Adjust(context.Background(), tx, milk.ID, dec("2.25"))
		if err != nil {
			return err
		}
		if !updated.CurrentStock.Equal(dec("3.75")) {
			t.Errorf("expected 3.75 after adjust, got %s", updated.CurrentStock)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}

	levels, err := ledger.Levels(context.Background(), []uint{milk.ID, 999})
	if err != nil {
		t.Fatalf("Levels returned error: %v", err)
	}
	if len(levels) != 1 || !levels[milk.ID].CurrentStock.Equal(dec("3.75")) {
		t.Fatalf("unexpected levels: %+v", levels)
	}
}

func TestLedgerAdjustRejectsNegativeResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	milk := f.ingredient(t, "Milk", "1")
	ledger := f.engine.Ledger()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Adjust(context.Background(), tx, milk.ID, dec("-1.5"))
		return err
	})
	var shortfall *InsufficientStockError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected *InsufficientStockError, got %v", err)
	}
	if !shortfall.Required.Equal(dec("1.5")) || !shortfall.Available.Equal(dec("1")) {
		t.Fatalf("unexpected shortfall: %+v", shortfall)
	}
	if got := f.stock(t, milk.ID); !got.Equal(dec("1")) {
		t.Fatalf("expected stock unchanged, got %s", got)
	}
}

func TestLedgerAdjustUnknownIngredient(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.engine.Ledger().Adjust(context.Background(), tx, 404, dec("1"))
		return err
	})
	if !errors.Is(err, ErrUnknownIngredient) {
		t.Fatalf("expected ErrUnknownIngredient, got %v", err)
	}
}

func TestLedgerSwapDetectsConcurrentChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	milk := f.ingredient(t, "Milk", "2")
	stale := milk
	stale.CurrentStock = dec("3")

	err := f.engine.Ledger().swap(context.Background(), f.db, stale, dec("2.5"))
	if !errors.Is(err, ErrTransientStore) {
		t.Fatalf("expected ErrTransientStore, got %v", err)
	}
	if got := f.stock(t, milk.ID); !got.Equal(dec("2")) {
		t.Fatalf("expected stock unchanged, got %s", got)
	}
}

func TestRecipeIndexDemand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	beans := f.ingredient(t, "Beans", "10")
	milk := f.ingredient(t, "Milk", "10")
	espresso := f.product(t, "Espresso", "40", use{beans, "0.02"})
	latte := f.product(t, "Latte", "65", use{beans, "0.02"}, use{milk, "0.3"})
	tea := f.product(t, "Tea", "35")

	index, err := loadRecipeIndex(context.Background(), f.db, []uint{espresso.ID, latte.ID, tea.ID})
	if err != nil {
		t.Fatalf("loadRecipeIndex returned error: %v", err)
	}
	if _, ok := index[tea.ID]; ok {
		t.Fatal("expected no entry for a product without recipe")
	}
	if ids := index.IngredientIDs(); len(ids) != 2 || ids[0] != beans.ID || ids[1] != milk.ID {
		t.Fatalf("unexpected ingredient ids: %v", ids)
	}

	demand := index.Demand([]LineRequest{
		{ProductID: espresso.ID, Quantity: 2},
		{ProductID: latte.ID, Quantity: 3},
		{ProductID: tea.ID, Quantity: 5},
	})
	if !demand[beans.ID].Equal(dec("0.1")) || !demand[milk.ID].Equal(dec("0.9")) {
		t.Fatalf("unexpected demand: %v", demand)
	}
}
