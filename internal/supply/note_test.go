package supply

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLines(t *testing.T) {
	t.Parallel()

	lines, err := ParseLines("# weekly delivery\n\nMilk;12;540\n  Arabica Beans ; 2,5 \nSugar;1;\n")
	if err != nil {
		t.Fatalf("ParseLines returned error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	tests := []struct {
		idx      int
		number   int
		name     string
		quantity string
		cost     string
	}{
		{idx: 0, number: 3, name: "Milk", quantity: "12", cost: "540"},
		{idx: 1, number: 4, name: "Arabica Beans", quantity: "2.5", cost: "0"},
		{idx: 2, number: 5, name: "Sugar", quantity: "1", cost: "0"},
	}
	for _, tt := range tests {
		line := lines[tt.idx]
		if line.Number != tt.number || line.Name != tt.name {
			t.Fatalf("line %d: unexpected %+v", tt.idx, line)
		}
		if !line.Quantity.Equal(decimal.RequireFromString(tt.quantity)) || !line.Cost.Equal(decimal.RequireFromString(tt.cost)) {
			t.Fatalf("line %d: unexpected amounts %s / %s", tt.idx, line.Quantity, line.Cost)
		}
	}
}

func TestParseLinesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "empty", text: "\n# nothing\n", want: ErrEmptyNote},
		{name: "missing quantity", text: "Milk", want: ErrMalformedLine},
		{name: "too many fields", text: "Milk;1;2;3", want: ErrMalformedLine},
		{name: "bad quantity", text: "Milk;lots", want: ErrMalformedLine},
		{name: "bad cost", text: "Milk;1;free", want: ErrMalformedLine},
		{name: "missing name", text: ";1", want: ErrMalformedLine},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseLines(tt.text); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseDeliveryNote(t *testing.T) {
	t.Parallel()

	lines, err := ParseDeliveryNote([]byte("Milk;4"), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("ParseDeliveryNote returned error: %v", err)
	}
	if len(lines) != 1 || lines[0].Name != "Milk" {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	if _, err := ParseDeliveryNote([]byte{0x89, 0x50}, "image/png"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ParseDeliveryNote([]byte("not a pdf"), "application/pdf"); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}

func TestMimeTypeFromName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"note.PDF":     "application/pdf",
		"note.txt":     "text/plain",
		"note.csv":     "text/plain",
		"note.jpeg":    "application/octet-stream",
		"no-extension": "application/octet-stream",
	}
	for name, want := range tests {
		if got := MimeTypeFromName(name); got != want {
			t.Fatalf("MimeTypeFromName(%q) = %q, want %q", name, got, want)
		}
	}
}
