package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelez-dev/storefront-backend/internal/cart"
	"github.com/avelez-dev/storefront-backend/internal/inventory"
	"github.com/avelez-dev/storefront-backend/internal/orders"
	"github.com/avelez-dev/storefront-backend/pkg/db/models"
	"github.com/avelez-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avelez-dev/storefront-backend/pkg/errors"
	"github.com/avelez-dev/storefront-backend/pkg/logger"
	"github.com/avelez-dev/storefront-backend/pkg/metrics"
)

// Outcome labels recorded against checkout metrics.
const (
	outcomeSuccess       = "success"
	outcomeRejected      = "rejected"
	outcomeStockRejected = "stock_rejected"
	outcomeFailure       = "failure"
)

type reservationEngine interface {
	Reserve(ctx context.Context, requests []inventory.Request) ([]inventory.ReservedItem, error)
	Release(ctx context.Context, items []inventory.ReservedItem) error
}

type orderLedger interface {
	Create(ctx context.Context, tx *gorm.DB, input orders.CreateOrderInput) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlaceOrderInput carries everything a placement attempt needs beyond the
// cart contents themselves.
type PlaceOrderInput struct {
	CustomerID    uuid.UUID
	ShippingAddr  string
	PaymentMethod enums.PaymentMethod
}

// Service orchestrates order placement: snapshot the cart, reserve stock,
// append the order. Each step owns its commit point, so later failures are
// compensated rather than rolled back.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

type service struct {
	carts   cart.Service
	engine  reservationEngine
	ledger  orderLedger
	tx      txRunner
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

// NewService builds the placement orchestrator. Metrics may be nil.
func NewService(
	carts cart.Service,
	engine reservationEngine,
	ledger orderLedger,
	tx txRunner,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if engine == nil {
		return nil, fmt.Errorf("reservation engine required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:   carts,
		engine:  engine,
		ledger:  ledger,
		tx:      tx,
		metrics: checkoutMetrics,
		logg:    logg,
	}, nil
}

// PlaceOrder runs the placement pipeline. The cart snapshot and the stock
// reservation each commit before the order write begins; if the order write
// fails the reservation is released and the cart restored, and the attempt
// surfaces as a dependency failure.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	started := time.Now()
	outcome := outcomeFailure
	defer func() {
		s.metrics.IncAttempt(outcome)
		s.metrics.ObserveDuration(outcome, time.Since(started))
	}()

	if input.CustomerID == uuid.Nil {
		outcome = outcomeRejected
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if strings.TrimSpace(input.ShippingAddr) == "" {
		outcome = outcomeRejected
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if !input.PaymentMethod.IsValid() {
		outcome = outcomeRejected
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	logCtx := s.logg.WithUserID(ctx, input.CustomerID.String())

	snapshot, err := s.carts.SnapshotAndClear(ctx, input.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "snapshot cart")
	}
	if len(snapshot) == 0 {
		outcome = outcomeRejected
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	requests := make([]inventory.Request, 0, len(snapshot))
	for _, line := range snapshot {
		requests = append(requests, inventory.Request{ProductID: line.ProductID, Qty: line.Qty})
	}

	reserved, err := s.engine.Reserve(ctx, requests)
	if err != nil {
		s.restoreCart(logCtx, input.CustomerID, snapshot)
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeInsufficientStock {
			outcome = outcomeStockRejected
			s.metrics.IncStockRejection()
			return nil, err
		}
		return nil, err
	}

	items := make([]orders.OrderItemInput, 0, len(reserved))
	for _, line := range reserved {
		items = append(items, orders.OrderItemInput{
			ProductID: line.ProductID,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, createErr := s.ledger.Create(ctx, tx, orders.CreateOrderInput{
			CustomerID:    input.CustomerID,
			ShippingAddr:  input.ShippingAddr,
			PaymentMethod: input.PaymentMethod,
			Items:         items,
		})
		if createErr != nil {
			return createErr
		}
		order = created
		return nil
	})
	if err != nil {
		s.compensate(logCtx, input.CustomerID, snapshot, reserved, err)
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeValidation {
			outcome = outcomeRejected
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order placement failed")
	}

	outcome = outcomeSuccess
	s.logg.Info(s.logg.WithOrderID(logCtx, order.ID.String()), "order placed")
	return order, nil
}

// compensate undoes the reservation after a failed order write. Release and
// restore are both best effort; failures here are logged for manual
// reconciliation rather than surfaced to the shopper.
func (s *service) compensate(ctx context.Context, customerID uuid.UUID, snapshot []cart.Item, reserved []inventory.ReservedItem, cause error) {
	s.metrics.IncCompensation()
	if err := s.engine.Release(ctx, reserved); err != nil {
		fields := map[string]any{
			"customer_id": customerID.String(),
			"cause":       cause.Error(),
		}
		s.logg.Error(s.logg.WithFields(ctx, fields),
			"stock release failed after order write failure, manual reconciliation required", err)
	}
	s.restoreCart(ctx, customerID, snapshot)
}

func (s *service) restoreCart(ctx context.Context, customerID uuid.UUID, snapshot []cart.Item) {
	if err := s.carts.Restore(ctx, customerID, snapshot); err != nil {
		fields := map[string]any{"customer_id": customerID.String()}
		s.logg.Error(s.logg.WithFields(ctx, fields), "cart restore failed", err)
	}
}
