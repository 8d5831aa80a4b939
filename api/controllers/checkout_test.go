package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/avelez-dev/storefront-backend/internal/checkout"
	"github.com/avelez-dev/storefront-backend/pkg/db/models"
	"github.com/avelez-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avelez-dev/storefront-backend/pkg/errors"
	"github.com/avelez-dev/storefront-backend/pkg/types"
)

type stubCheckoutService struct {
	order     *models.Order
	err       error
	lastInput checkoutsvc.PlaceOrderInput
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*models.Order, error) {
	s.lastInput = input
	return s.order, s.err
}

func TestCheckoutSuccess(t *testing.T) {
	customerID := uuid.New()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    customerID,
		Status:        enums.OrderStatusPending,
		TotalAmount:   decimal.NewFromFloat(25.00),
		ShippingAddr:  "1 Warehouse Way",
		PaymentMethod: enums.PaymentMethodCOD,
	}
	svc := &stubCheckoutService{order: order}
	handler := Checkout(svc, nil)

	body := `{"shipping_addr":"1 Warehouse Way","payment_method":"cod"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)), customerID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastInput.CustomerID != customerID {
		t.Fatalf("unexpected customer id %s", svc.lastInput.CustomerID)
	}
	if svc.lastInput.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("unexpected payment method %s", svc.lastInput.PaymentMethod)
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID {
		t.Fatalf("unexpected order id %s", envelope.Data.ID)
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	handler := Checkout(&stubCheckoutService{}, nil)

	body := `{"shipping_addr":"1 Warehouse Way","payment_method":"barter"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutMissingCustomerContext(t *testing.T) {
	handler := Checkout(&stubCheckoutService{}, nil)

	body := `{"shipping_addr":"1 Warehouse Way","payment_method":"cod"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCheckoutInsufficientStockConflict(t *testing.T) {
	svc := &stubCheckoutService{
		err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"violations": []map[string]any{{"reason": "insufficient_stock"}}}),
	}
	handler := Checkout(svc, nil)

	body := `{"shipping_addr":"1 Warehouse Way","payment_method":"cod"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if envelope.Error.Details == nil {
		t.Fatal("expected violations in details")
	}
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	handler := Checkout(svc, nil)

	body := `{"shipping_addr":"1 Warehouse Way","payment_method":"cod"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
