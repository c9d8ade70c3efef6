package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestEncodeStockChanged(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	payload, err := Encode(StockChanged{Source: SourceOrder, Reference: "abc", Ingredients: []uint{1, 4}, At: at})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["source"] != "order" || decoded["reference"] != "abc" {
		t.Fatalf("unexpected payload: %s", payload)
	}
	if ids, ok := decoded["ingredients"].([]any); !ok || len(ids) != 2 {
		t.Fatalf("expected two ingredient ids, got %v", decoded["ingredients"])
	}
}

func TestEncodeEmptyIngredients(t *testing.T) {
	t.Parallel()

	payload, err := Encode(StockChanged{Source: SourceSupply})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(payload), `"ingredients":[]`) {
		t.Fatalf("expected empty ingredient list, got %s", payload)
	}
	if strings.Contains(string(payload), "reference") {
		t.Fatalf("expected reference to be omitted, got %s", payload)
	}
}

func TestNewRedisPublisher(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisPublisher(nil, ""); err == nil {
		t.Fatal("expected error for nil client")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	publisher, err := NewRedisPublisher(client, "")
	if err != nil {
		t.Fatalf("NewRedisPublisher returned error: %v", err)
	}
	if publisher.Channel() != DefaultChannel {
		t.Fatalf("expected default channel, got %q", publisher.Channel())
	}
}

func TestRedisPublisherReportsUnreachableServer(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	publisher, err := NewRedisPublisher(client, "test:stock")
	if err != nil {
		t.Fatalf("NewRedisPublisher returned error: %v", err)
	}

	err = publisher.Publish(context.Background(), StockChanged{Source: SourceOrder})
	if err == nil {
		t.Fatal("expected publish to fail without a server")
	}
	if !strings.Contains(err.Error(), "test:stock") {
		t.Fatalf("expected channel in error, got %v", err)
	}
}

func TestConnectRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := Connect(context.Background(), "http://not-redis"); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

func TestPublisherFunc(t *testing.T) {
	t.Parallel()

	var got StockChanged
	var publisher Publisher = PublisherFunc(func(_ context.Context, event StockChanged) error {
		got = event
		return nil
	})
	if err := publisher.Publish(context.Background(), StockChanged{Reference: "r1"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if got.Reference != "r1" {
		t.Fatalf("expected event to be forwarded, got %+v", got)
	}
	if err := (Nop{}).Publish(context.Background(), got); err != nil {
		t.Fatalf("Nop returned error: %v", err)
	}
}
