package supply

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedFormat = errors.New("supply: unsupported delivery note format")
	ErrMalformedLine     = errors.New("supply: malformed delivery note line")
)

// NoteLine is one parsed line of a delivery note.
type NoteLine struct {
	Number   int
	Name     string
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// ParseDeliveryNote extracts lines of the form "<ingredient>;<quantity>[;<cost>]"
// from a PDF or plain-text delivery note. Blank lines and lines starting with
// '#' are ignored.
func ParseDeliveryNote(data []byte, mimeType string) ([]NoteLine, error) {
	lower := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(lower, "pdf"):
		text, err := extractTextFromPDF(data)
		if err != nil {
			return nil, fmt.Errorf("supply: read pdf: %w", err)
		}
		return ParseLines(text)
	case lower == "", strings.HasPrefix(lower, "text/"):
		return ParseLines(string(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
}

// ParseLines parses the plain-text body of a delivery note.
func ParseLines(text string) ([]NoteLine, error) {
	var lines []NoteLine
	scanner := bufio.NewScanner(strings.NewReader(text))
	number := 0
	for scanner.Scan() {
		number++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		fields := strings.Split(raw, ";")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w %d: %q", ErrMalformedLine, number, raw)
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			return nil, fmt.Errorf("%w %d: missing ingredient name", ErrMalformedLine, number)
		}
		quantity, err := parseAmount(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w %d: quantity: %v", ErrMalformedLine, number, err)
		}
		cost := decimal.Zero
		if len(fields) == 3 && strings.TrimSpace(fields[2]) != "" {
			if cost, err = parseAmount(fields[2]); err != nil {
				return nil, fmt.Errorf("%w %d: cost: %v", ErrMalformedLine, number, err)
			}
		}

		lines = append(lines, NoteLine{Number: number, Name: name, Quantity: quantity, Cost: cost})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyNote
	}
	return lines, nil
}

// parseAmount accepts both "1.5" and "1,5".
func parseAmount(value string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(value), ",", "."))
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			for _, word := range row.Content {
				builder.WriteString(word.S)
			}
			builder.WriteString("\n")
		}
	}
	return builder.String(), nil
}

// MimeTypeFromName guesses the content type of an uploaded note from its file name.
func MimeTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".txt", ".csv":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
