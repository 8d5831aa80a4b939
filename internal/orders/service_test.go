package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avelez-dev/storefront-backend/pkg/db/models"
	"github.com/avelez-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avelez-dev/storefront-backend/pkg/errors"
	"github.com/avelez-dev/storefront-backend/pkg/outbox"
	"github.com/avelez-dev/storefront-backend/pkg/pagination"
)

type stubOrderRepo struct {
	orders    map[uuid.UUID]*models.Order
	createErr error
	updateErr error
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list := &OrderList{}
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			list.Orders = append(list.Orders, OrderSummary{ID: order.ID, CustomerID: order.CustomerID, Status: order.Status})
		}
	}
	return list, nil
}

func (s *stubOrderRepo) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	list := &OrderList{}
	for _, order := range s.orders {
		list.Orders = append(list.Orders, OrderSummary{ID: order.ID, CustomerID: order.CustomerID, Status: order.Status})
	}
	return list, nil
}

func (s *stubOrderRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	return nil
}

type stubOutbox struct {
	events  []outbox.DomainEvent
	emitErr error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.emitErr != nil {
		return s.emitErr
	}
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newTestOrderService(t *testing.T, repo *stubOrderRepo, ob *stubOutbox) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, ob)
	require.NoError(t, err)
	return svc
}

func validCreateInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID:    uuid.New(),
		ShippingAddr:  "1 Warehouse Way",
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []OrderItemInput{
			{ProductID: uuid.New(), Name: "Widget", Qty: 2, UnitPrice: decimal.NewFromFloat(10.00)},
			{ProductID: uuid.New(), Name: "Gadget", Qty: 1, UnitPrice: decimal.NewFromFloat(5.00)},
		},
	}
}

func TestCreateComputesTotalFromSnapshot(t *testing.T) {
	repo := newStubOrderRepo()
	ob := &stubOutbox{}
	svc := newTestOrderService(t, repo, ob)

	order, err := svc.Create(context.Background(), &gorm.DB{}, validCreateInput())
	require.NoError(t, err)

	assert.True(t, order.TotalAmount.Equal(decimal.NewFromFloat(25.00)),
		"want 25.00, got %s", order.TotalAmount)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventOrderPlaced, ob.events[0].EventType)
	assert.Equal(t, order.ID, ob.events[0].AggregateID)
}

func TestCreateValidation(t *testing.T) {
	repo := newStubOrderRepo()
	svc := newTestOrderService(t, repo, &stubOutbox{})
	ctx := context.Background()

	cases := map[string]func(*CreateOrderInput){
		"missing customer":    func(in *CreateOrderInput) { in.CustomerID = uuid.Nil },
		"blank address":       func(in *CreateOrderInput) { in.ShippingAddr = "  " },
		"bad payment method":  func(in *CreateOrderInput) { in.PaymentMethod = "crypto" },
		"no items":            func(in *CreateOrderInput) { in.Items = nil },
		"zero quantity":       func(in *CreateOrderInput) { in.Items[0].Qty = 0 },
		"negative unit price": func(in *CreateOrderInput) { in.Items[0].UnitPrice = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := validCreateInput()
			mutate(&input)
			_, err := svc.Create(ctx, &gorm.DB{}, input)
			require.Error(t, err)
			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
		})
	}
	assert.Empty(t, repo.orders, "no order may persist on validation failure")
}

func TestCreateSurfacesRepoFailure(t *testing.T) {
	repo := newStubOrderRepo()
	repo.createErr = fmt.Errorf("connection reset")
	svc := newTestOrderService(t, repo, &stubOutbox{})

	_, err := svc.Create(context.Background(), &gorm.DB{}, validCreateInput())
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusShipped, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusDelivered, false},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, true},
		{enums.OrderStatusShipped, enums.OrderStatusPending, false},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCancelled, enums.OrderStatusShipped, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			repo := newStubOrderRepo()
			ob := &stubOutbox{}
			svc := newTestOrderService(t, repo, ob)

			orderID := uuid.New()
			repo.orders[orderID] = &models.Order{ID: orderID, CustomerID: uuid.New(), Status: tc.from}

			updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
				OrderID: orderID,
				Status:  tc.to,
			})
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, updated.Status)
				require.Len(t, ob.events, 1)
				assert.Equal(t, enums.EventOrderStatusChanged, ob.events[0].EventType)
				return
			}
			require.Error(t, err)
			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
			assert.Equal(t, tc.from, repo.orders[orderID].Status, "status must not change")
			assert.Empty(t, ob.events)
		})
	}
}

func TestUpdateStatusSameStatusRejected(t *testing.T) {
	repo := newStubOrderRepo()
	ob := &stubOutbox{}
	svc := newTestOrderService(t, repo, ob)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	} {
		orderID := uuid.New()
		repo.orders[orderID] = &models.Order{ID: orderID, Status: status}

		_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID: orderID,
			Status:  status,
		})
		require.Error(t, err, "repeating %s must fail", status)
		appErr := pkgerrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
		assert.Equal(t, status, repo.orders[orderID].Status)
	}
	assert.Empty(t, ob.events, "no event for a rejected transition")
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(), &stubOutbox{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: uuid.New(),
		Status:  enums.OrderStatusShipped,
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestFindByIDNotFound(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(), &stubOutbox{})

	_, err := svc.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
