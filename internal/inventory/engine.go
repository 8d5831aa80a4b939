package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/avelez-dev/storefront-backend/internal/catalog"
	pkgerrors "github.com/avelez-dev/storefront-backend/pkg/errors"
	"github.com/avelez-dev/storefront-backend/pkg/logger"
)

// Request asks for qty units of a product to be reserved.
type Request struct {
	ProductID uuid.UUID
	Qty       int
}

// ReservedItem confirms a reservation and snapshots the product identity and
// unit price at reservation time.
type ReservedItem struct {
	ProductID uuid.UUID
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
}

// Violation describes one product that could not be reserved.
type Violation struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Reason    string    `json:"reason"`
}

const (
	ReasonUnknownProduct    = "unknown_product"
	ReasonProductInactive   = "product_inactive"
	ReasonInsufficientStock = "insufficient_stock"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Engine applies all-or-nothing stock reservations against the catalog.
type Engine struct {
	repo catalog.Repository
	tx   txRunner
	logg *logger.Logger
}

// NewEngine builds a reservation engine with the required dependencies.
func NewEngine(repo catalog.Repository, tx txRunner, logg *logger.Logger) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Engine{repo: repo, tx: tx, logg: logg}, nil
}

// Reserve decrements stock for every request inside a single transaction.
// Either every line is reserved or none is: any violation rolls the
// transaction back and surfaces the full violation list so the caller can
// report all problems at once.
func (e *Engine) Reserve(ctx context.Context, requests []Request) ([]ReservedItem, error) {
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation product id required")
		}
	}
	if len(requests) == 0 {
		return []ReservedItem{}, nil
	}

	var reserved []ReservedItem
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, txErr := e.reserveInTx(ctx, tx, requests)
		if txErr != nil {
			return txErr
		}
		reserved = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

func (e *Engine) reserveInTx(ctx context.Context, tx *gorm.DB, requests []Request) ([]ReservedItem, error) {
	repo := e.repo.WithTx(tx)

	ids := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ProductID)
	}

	products, err := repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products for reservation")
	}

	byID := make(map[uuid.UUID]productState, len(products))
	for _, product := range products {
		byID[product.ID] = productState{
			name:     product.Name,
			stock:    product.Stock,
			price:    product.Price,
			isActive: product.IsActive,
		}
	}

	violations := collectViolations(requests, byID)
	if len(violations) > 0 {
		return nil, insufficientStock(violations)
	}

	reserved := make([]ReservedItem, 0, len(requests))
	for _, req := range requests {
		state := byID[req.ProductID]
		ok, err := repo.DecrementStock(ctx, req.ProductID, req.Qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			// A concurrent reservation won the race between the read and
			// this write. Roll everything back and report the line.
			return nil, insufficientStock([]Violation{{
				ProductID: req.ProductID,
				Requested: req.Qty,
				Available: state.stock,
				Reason:    ReasonInsufficientStock,
			}})
		}
		reserved = append(reserved, ReservedItem{
			ProductID: req.ProductID,
			Name:      state.name,
			Qty:       req.Qty,
			UnitPrice: state.price,
		})
	}
	return reserved, nil
}

// Release returns previously reserved units to the catalog. Increments are
// best effort: a failed line does not stop the rest, and the aggregate error
// reports every line that could not be released.
func (e *Engine) Release(ctx context.Context, items []ReservedItem) error {
	var result error
	for _, item := range items {
		if item.Qty <= 0 {
			continue
		}
		if err := e.repo.IncrementStock(ctx, item.ProductID, item.Qty); err != nil {
			if e.logg != nil {
				logCtx := e.logg.WithFields(ctx, map[string]any{
					"product_id": item.ProductID.String(),
					"qty":        item.Qty,
				})
				e.logg.Error(logCtx, "stock release failed, manual reconciliation required", err)
			}
			result = multierr.Append(result, fmt.Errorf("release %s x%d: %w", item.ProductID, item.Qty, err))
		}
	}
	return result
}

type productState struct {
	name     string
	stock    int
	price    decimal.Decimal
	isActive bool
}

func collectViolations(requests []Request, byID map[uuid.UUID]productState) []Violation {
	var violations []Violation
	for _, req := range requests {
		state, ok := byID[req.ProductID]
		switch {
		case !ok:
			violations = append(violations, Violation{
				ProductID: req.ProductID,
				Requested: req.Qty,
				Reason:    ReasonUnknownProduct,
			})
		case !state.isActive:
			violations = append(violations, Violation{
				ProductID: req.ProductID,
				Requested: req.Qty,
				Available: state.stock,
				Reason:    ReasonProductInactive,
			})
		case state.stock < req.Qty:
			violations = append(violations, Violation{
				ProductID: req.ProductID,
				Requested: req.Qty,
				Available: state.stock,
				Reason:    ReasonInsufficientStock,
			})
		}
	}
	return violations
}

func insufficientStock(violations []Violation) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"violations": violations})
}
