package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"cafepos/internal/config"
	"cafepos/internal/db"
	"cafepos/internal/inventory"
	applog "cafepos/internal/log"
	"cafepos/internal/supply"
)

var openDatabase = func() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return db.Configure(cfg.Database)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: import_supplies <delivery-note.pdf|.txt> [YYYY-MM-DD]")
		os.Exit(2)
	}

	summary, err := run(context.Background(), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(summary)
}

func run(ctx context.Context, args []string) (string, error) {
	notePath := strings.TrimSpace(args[0])
	if notePath == "" {
		return "", fmt.Errorf("delivery note path must not be empty")
	}

	var date time.Time
	if len(args) > 1 {
		parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(args[1]))
		if err != nil {
			return "", fmt.Errorf("parse supply date: %w", err)
		}
		date = parsed
	}

	data, err := os.ReadFile(notePath)
	if err != nil {
		return "", fmt.Errorf("read delivery note: %w", err)
	}
	lines, err := supply.ParseDeliveryNote(data, supply.MimeTypeFromName(notePath))
	if err != nil {
		return "", fmt.Errorf("parse delivery note: %w", err)
	}

	database, err := openDatabase()
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}

	engine, err := inventory.New(database, inventory.Options{})
	if err != nil {
		return "", fmt.Errorf("configure inventory engine: %w", err)
	}
	service, err := supply.NewService(engine)
	if err != nil {
		return "", fmt.Errorf("configure supply service: %w", err)
	}

	recorded, err := service.ReceiveNote(ctx, lines, date)
	if err != nil {
		return "", fmt.Errorf("record delivery note: %w", err)
	}

	applog.Info(ctx, "delivery note imported", "file", notePath, "lines", len(recorded))
	summary := fmt.Sprintf("recorded %d supplies from %s", len(recorded), notePath)

	ids := make([]uint, 0, len(recorded))
	for _, s := range recorded {
		ids = append(ids, s.IngredientID)
	}
	low, err := service.LowStock(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("check stock levels: %w", err)
	}
	if len(low) > 0 {
		names := make([]string, 0, len(low))
		for _, ingredient := range low {
			names = append(names, fmt.Sprintf("%s (%s %s)", ingredient.Name, ingredient.CurrentStock.String(), ingredient.Unit))
		}
		summary += "; still low: " + strings.Join(names, ", ")
	}
	return summary, nil
}
