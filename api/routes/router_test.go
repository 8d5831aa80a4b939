package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/avelez-dev/storefront-backend/api/controllers"
	cartsvc "github.com/avelez-dev/storefront-backend/internal/cart"
	catalogsvc "github.com/avelez-dev/storefront-backend/internal/catalog"
	checkoutsvc "github.com/avelez-dev/storefront-backend/internal/checkout"
	ordersvc "github.com/avelez-dev/storefront-backend/internal/orders"
	pkgAuth "github.com/avelez-dev/storefront-backend/pkg/auth"
	"github.com/avelez-dev/storefront-backend/pkg/config"
	"github.com/avelez-dev/storefront-backend/pkg/db/models"
	"github.com/avelez-dev/storefront-backend/pkg/enums"
	"github.com/avelez-dev/storefront-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCatalog struct{}

func (stubCatalog) CreateProduct(ctx context.Context, ownerID uuid.UUID, input catalogsvc.CreateProductInput) (*models.Product, error) {
	return &models.Product{ID: uuid.New()}, nil
}

func (stubCatalog) UpdateProduct(ctx context.Context, productID uuid.UUID, input catalogsvc.UpdateProductInput) (*models.Product, error) {
	return &models.Product{ID: productID}, nil
}

func (stubCatalog) DeleteProduct(ctx context.Context, productID uuid.UUID) error { return nil }

func (stubCatalog) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: productID}, nil
}

func (stubCatalog) ListProducts(ctx context.Context, params pagination.Params, filters catalogsvc.ProductFilters) (*catalogsvc.ProductList, error) {
	return &catalogsvc.ProductList{}, nil
}

func (stubCatalog) CreateCategory(ctx context.Context, input catalogsvc.CreateCategoryInput) (*models.Category, error) {
	return &models.Category{ID: uuid.New()}, nil
}

func (stubCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	return nil, nil
}

type stubCart struct{}

func (stubCart) Get(ctx context.Context, customerID uuid.UUID) ([]cartsvc.Item, error) {
	return nil, nil
}

func (stubCart) Add(ctx context.Context, customerID, productID uuid.UUID, qty int) ([]cartsvc.Item, error) {
	return nil, nil
}

func (stubCart) Remove(ctx context.Context, customerID, productID uuid.UUID) ([]cartsvc.Item, error) {
	return nil, nil
}

func (stubCart) SnapshotAndClear(ctx context.Context, customerID uuid.UUID) ([]cartsvc.Item, error) {
	return nil, nil
}

func (stubCart) Restore(ctx context.Context, customerID uuid.UUID, snapshot []cartsvc.Item) error {
	return nil
}

type stubCheckout struct{}

func (stubCheckout) PlaceOrder(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

type stubOrders struct{}

func (stubOrders) Create(ctx context.Context, tx *gorm.DB, input ordersvc.CreateOrderInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (stubOrders) UpdateStatus(ctx context.Context, input ordersvc.UpdateStatusInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID}, nil
}

func (stubOrders) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrders) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

func (stubOrders) ListAll(ctx context.Context, params pagination.Params, filters ordersvc.OrderFilters) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

func testRouter(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()
	jwtCfg := config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60}
	cfg := &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, Port: "8080"},
		JWT: jwtCfg,
	}
	handler := NewRouter(Deps{
		Config:   cfg,
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		Registry: prometheus.NewRegistry(),
		Catalog:  stubCatalog{},
		Cart:     stubCart{},
		Checkout: stubCheckout{},
		Orders:   stubOrders{},
	})
	return handler, jwtCfg
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthLive(t *testing.T) {
	handler, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterHealthReady(t *testing.T) {
	handler, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	handler, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterPublicCatalogNeedsNoAuth(t *testing.T) {
	handler, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/products", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterCartRequiresAuth(t *testing.T) {
	handler, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterCartAllowsCustomer(t *testing.T) {
	handler, jwtCfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, enums.MemberRoleCustomer))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterAdminBlocksCustomers(t *testing.T) {
	handler, jwtCfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, enums.MemberRoleCustomer))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRouterAdminAllowsAdmins(t *testing.T) {
	handler, jwtCfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, enums.MemberRoleAdmin))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
