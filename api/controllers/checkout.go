package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelez-dev/storefront-backend/api/responses"
	"github.com/avelez-dev/storefront-backend/api/validators"
	checkoutsvc "github.com/avelez-dev/storefront-backend/internal/checkout"
	"github.com/avelez-dev/storefront-backend/pkg/db/models"
	"github.com/avelez-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avelez-dev/storefront-backend/pkg/errors"
	"github.com/avelez-dev/storefront-backend/pkg/logger"
)

type checkoutRequest struct {
	ShippingAddr  string `json:"shipping_addr" validate:"required,min=5,max=500"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cod external"`
}

type orderItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	Status        enums.OrderStatus   `json:"status"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	ShippingAddr  string              `json:"shipping_addr"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	IsPaid        bool                `json:"is_paid"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		ShippingAddr:  order.ShippingAddr,
		PaymentMethod: order.PaymentMethod,
		IsPaid:        order.IsPaid,
		Items:         make([]orderItemResponse, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Qty:       item.Qty,
		})
	}
	return resp
}

// Checkout places an order from the customer's cart.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.PlaceOrder(r.Context(), checkoutsvc.PlaceOrderInput{
			CustomerID:    customerID,
			ShippingAddr:  body.ShippingAddr,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
