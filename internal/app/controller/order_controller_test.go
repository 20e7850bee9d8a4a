package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/internal/app/service"
	"github.com/avolkau/lavka-backend/internal/db"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubProvider fakes the payment gateway for controller tests
type stubProvider struct {
	url        string
	externalID string
	err        error
}

func (p *stubProvider) CreatePaymentLink(_ context.Context, _ *model.Order) (string, string, error) {
	if p.err != nil {
		return "", "", p.err
	}
	return p.url, p.externalID, nil
}

type orderControllerFixture struct {
	controller   *OrderController
	orderService service.OrderService
	cartService  service.CartService
	provider     *stubProvider
	router       *gin.Engine
	db           *gorm.DB
	user         *model.User
	product      *model.Product
}

func setupOrderControllerTest(t *testing.T) *orderControllerFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cartRepo := repository.NewCartRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)

	provider := &stubProvider{
		url:        "https://pay.example.com/confirm/abc",
		externalID: "pay_abc123",
	}

	cartService := service.NewCartService(cartRepo, productRepo)
	orderService := service.NewOrderService(orderRepo, provider, testDB)
	orderController := NewOrderController(orderService)

	user := &model.User{
		Email:        "test@example.com",
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         model.RoleUser,
	}
	testDB.Create(user)

	category := &model.Category{Title: "Juices", Slug: "juices"}
	testDB.Create(category)

	product := &model.Product{
		Title:      "Orange Juice",
		Price:      150,
		CategoryID: category.ID,
	}
	testDB.Create(product)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	return &orderControllerFixture{
		controller:   orderController,
		orderService: orderService,
		cartService:  cartService,
		provider:     provider,
		router:       router,
		db:           testDB,
		user:         user,
		product:      product,
	}
}

func TestOrderController_CreateOrder_Success(t *testing.T) {
	f := setupOrderControllerTest(t)

	_, err := f.cartService.AddItem(f.user.ID, f.product.ID, 2)
	require.NoError(t, err)

	f.router.POST("/orders", func(c *gin.Context) {
		setUserIDInContext(c, f.user.ID)
		f.controller.CreateOrder(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Order      model.Order `json:"order"`
		PaymentURL string      `json:"payment_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.OrderStatusCreated, resp.Order.Status)
	assert.Equal(t, float64(300), resp.Order.TotalPrice)
	assert.Equal(t, "https://pay.example.com/confirm/abc", resp.PaymentURL)
}

func TestOrderController_CreateOrder_EmptyCart(t *testing.T) {
	f := setupOrderControllerTest(t)
	f.db.Create(&model.Cart{UserID: f.user.ID})

	f.router.POST("/orders", func(c *gin.Context) {
		setUserIDInContext(c, f.user.ID)
		f.controller.CreateOrder(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CART_ITEMS_NOT_FOUND")
}

func TestOrderController_CreateOrder_NoCart(t *testing.T) {
	f := setupOrderControllerTest(t)

	f.router.POST("/orders", func(c *gin.Context) {
		setUserIDInContext(c, f.user.ID)
		f.controller.CreateOrder(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CART_NOT_FOUND")
}

func TestOrderController_CreateOrder_PaymentGatewayDown(t *testing.T) {
	f := setupOrderControllerTest(t)
	f.provider.err = service.ErrPaymentGateway

	_, err := f.cartService.AddItem(f.user.ID, f.product.ID, 1)
	require.NoError(t, err)

	f.router.POST("/orders", func(c *gin.Context) {
		setUserIDInContext(c, f.user.ID)
		f.controller.CreateOrder(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "PAYMENT_GATEWAY_ERROR")

	// The order is still persisted for later reconciliation
	var count int64
	f.db.Model(&model.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestOrderController_ListOrders_Empty(t *testing.T) {
	f := setupOrderControllerTest(t)

	f.router.GET("/orders", func(c *gin.Context) {
		setUserIDInContext(c, f.user.ID)
		f.controller.ListOrders(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ORDERS_NOT_FOUND")
}

func TestOrderController_GetOrder_NotOwner(t *testing.T) {
	f := setupOrderControllerTest(t)

	_, err := f.cartService.AddItem(f.user.ID, f.product.ID, 1)
	require.NoError(t, err)
	result, err := f.orderService.CreateOrder(context.Background(), f.user.ID)
	require.NoError(t, err)

	other := &model.User{
		Email:        "other@example.com",
		PasswordHash: "hash",
		Name:         "Other User",
		Role:         model.RoleUser,
	}
	f.db.Create(other)

	f.router.GET("/orders/:id", func(c *gin.Context) {
		setUserIDInContext(c, other.ID)
		f.controller.GetOrder(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/"+strconv.Itoa(int(result.Order.ID)), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ORDER_NOT_FOUND")
}
