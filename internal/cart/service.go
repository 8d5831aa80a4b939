package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelez-dev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avelez-dev/storefront-backend/pkg/errors"
)

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes cart operations for a single customer identity.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) ([]Item, error)
	Add(ctx context.Context, customerID, productID uuid.UUID, qty int) ([]Item, error)
	Remove(ctx context.Context, customerID, productID uuid.UUID) ([]Item, error)
	SnapshotAndClear(ctx context.Context, customerID uuid.UUID) ([]Item, error)
	Restore(ctx context.Context, customerID uuid.UUID, snapshot []Item) error
}

const defaultMaxLineItems = 100

type service struct {
	store        *Store
	products     productLoader
	locks        *keyedMutex
	maxLineItems int
}

// NewService builds a cart service with the required dependencies.
func NewService(store *Store, products productLoader, mutexShards, maxLineItems int) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if maxLineItems <= 0 {
		maxLineItems = defaultMaxLineItems
	}
	return &service{
		store:        store,
		products:     products,
		locks:        newKeyedMutex(mutexShards),
		maxLineItems: maxLineItems,
	}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) ([]Item, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.store.Load(ctx, customerID.String())
}

// Add appends a new line to the cart. Adding a product already in the cart is
// a conflict; quantity changes go through Remove+Add. The stock check here is
// a shopper-facing hint only, reservation at placement is authoritative.
func (s *service) Add(ctx context.Context, customerID, productID uuid.UUID, qty int) ([]Item, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	if product.Stock < qty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"available": product.Stock, "requested": qty})
	}

	unlock := s.locks.lock(customerID.String())
	defer unlock()

	items, err := s.store.Load(ctx, customerID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	for _, item := range items {
		if item.ProductID == productID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already in cart")
		}
	}
	if len(items) >= s.maxLineItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart line item limit reached").
			WithDetails(map[string]any{"max_line_items": s.maxLineItems})
	}

	items = append(items, Item{ProductID: productID, Qty: qty})
	if err := s.store.Save(ctx, customerID.String(), items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return items, nil
}

func (s *service) Remove(ctx context.Context, customerID, productID uuid.UUID) ([]Item, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	unlock := s.locks.lock(customerID.String())
	defer unlock()

	items, err := s.store.Load(ctx, customerID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	kept := make([]Item, 0, len(items))
	found := false
	for _, item := range items {
		if item.ProductID == productID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
	}

	if err := s.store.Save(ctx, customerID.String(), kept); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return kept, nil
}

// SnapshotAndClear hands the cart contents to the caller and empties the cart
// in one atomic step. An empty cart yields an empty snapshot, not an error.
func (s *service) SnapshotAndClear(ctx context.Context, customerID uuid.UUID) ([]Item, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	unlock := s.locks.lock(customerID.String())
	defer unlock()

	items, err := s.store.SnapshotAndClear(ctx, customerID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "snapshot cart")
	}
	return items, nil
}

// Restore puts snapshot items back after a failed placement, preserving their
// order. Lines whose product the customer re-added in the meantime are
// skipped rather than merged. Restoration intentionally bypasses the
// availability hint so a failed placement never loses cart lines.
func (s *service) Restore(ctx context.Context, customerID uuid.UUID, snapshot []Item) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(snapshot) == 0 {
		return nil
	}

	unlock := s.locks.lock(customerID.String())
	defer unlock()

	current, err := s.store.Load(ctx, customerID.String())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	present := make(map[uuid.UUID]bool, len(current))
	for _, item := range current {
		present[item.ProductID] = true
	}

	merged := make([]Item, 0, len(snapshot)+len(current))
	for _, item := range snapshot {
		if present[item.ProductID] {
			continue
		}
		merged = append(merged, item)
	}
	merged = append(merged, current...)

	if err := s.store.Save(ctx, customerID.String(), merged); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}
