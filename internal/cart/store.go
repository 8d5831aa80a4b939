package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelez-dev/storefront-backend/pkg/redis"
)

// Item is one cart line. A cart holds at most one line per product.
type Item struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(customerID string) string
}

// Store persists cart documents as one JSON array per customer key.
type Store struct {
	kv  kvStore
	ttl time.Duration
}

// NewStore builds a cart store over the provided key-value client.
func NewStore(kv kvStore, ttl time.Duration) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv store required")
	}
	return &Store{kv: kv, ttl: ttl}, nil
}

// Load returns the cart document for the customer. A missing key is an empty
// cart, not an error.
func (s *Store) Load(ctx context.Context, customerID string) ([]Item, error) {
	raw, err := s.kv.Get(ctx, s.kv.CartKey(customerID))
	if err != nil {
		if redis.IsNil(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return decodeItems(raw)
}

// Save overwrites the cart document, refreshing the TTL. An empty cart
// removes the key outright so emptied carts don't linger until TTL expiry.
func (s *Store) Save(ctx context.Context, customerID string, items []Item) error {
	if len(items) == 0 {
		if err := s.kv.Del(ctx, s.kv.CartKey(customerID)); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.CartKey(customerID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// SnapshotAndClear atomically reads and removes the cart document via GETDEL,
// so no concurrent writer can observe the snapshot without the clear.
func (s *Store) SnapshotAndClear(ctx context.Context, customerID string) ([]Item, error) {
	raw, err := s.kv.GetDel(ctx, s.kv.CartKey(customerID))
	if err != nil {
		if redis.IsNil(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}
	return decodeItems(raw)
}

func decodeItems(raw string) ([]Item, error) {
	if raw == "" {
		return []Item{}, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}
