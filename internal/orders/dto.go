package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelez-dev/storefront-backend/pkg/enums"
)

// OrderItemInput is one snapshot line handed to Create. UnitPrice is the
// price captured at reservation time, never the live catalog price.
type OrderItemInput struct {
	ProductID uuid.UUID
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
}

// CreateOrderInput carries everything needed to append an order to the ledger.
type CreateOrderInput struct {
	CustomerID    uuid.UUID
	ShippingAddr  string
	PaymentMethod enums.PaymentMethod
	Items         []OrderItemInput
}

// UpdateStatusInput captures a requested status transition.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	Status      enums.OrderStatus
	ActorUserID uuid.UUID
	ActorRole   string
}

// OrderFilters describe the inputs supported by the admin order list.
type OrderFilters struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	IsPaid      bool              `json:"is_paid"`
	TotalItems  int               `json:"total_items"`
	CreatedAt   time.Time         `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderPlacedEvent is emitted when an order commits to the ledger.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent is emitted on every legal status transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
}
