package service

import (
	"context"
	"errors"
	"testing"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubProvider fakes the payment gateway for checkout tests
type stubProvider struct {
	url        string
	externalID string
	err        error
	calls      int
}

func (p *stubProvider) CreatePaymentLink(_ context.Context, _ *model.Order) (string, string, error) {
	p.calls++
	if p.err != nil {
		return "", "", p.err
	}
	return p.url, p.externalID, nil
}

func setupOrderServiceTest(t *testing.T) (OrderService, CartService, *stubProvider, *model.User, *model.Product, *gorm.DB) {
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

	cartService := NewCartService(cartRepo, productRepo)
	orderService := NewOrderService(orderRepo, provider, testDB)

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

	return orderService, cartService, provider, user, product, testDB
}

func TestOrderService_CreateOrder(t *testing.T) {
	orderService, cartService, provider, user, product, _ := setupOrderServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)

	result, err := orderService.CreateOrder(context.Background(), user.ID)
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, model.OrderStatusCreated, order.Status)
	assert.Equal(t, 2, order.TotalQuantity)
	assert.Equal(t, float64(300), order.TotalPrice)
	require.Len(t, order.OrderItems, 1)
	assert.Equal(t, "Orange Juice", order.OrderItems[0].ProductName)
	assert.Equal(t, float64(150), order.OrderItems[0].Price)
	assert.Equal(t, float64(300), order.OrderItems[0].ResultPrice)

	assert.Equal(t, "https://pay.example.com/confirm/abc", result.PaymentURL)
	require.NotNil(t, order.ExternalID)
	assert.Equal(t, "pay_abc123", *order.ExternalID)
	assert.Equal(t, 1, provider.calls)

	// payment_details belongs to the provider's webhook report, not checkout
	assert.Empty(t, order.PaymentDetails)

	// Checkout empties the cart
	view, err := cartService.GetCart(user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestOrderService_CreateOrder_EmptyCart(t *testing.T) {
	orderService, cartService, provider, user, _, _ := setupOrderServiceTest(t)

	_, err := cartService.GetCart(user.ID)
	require.NoError(t, err)

	_, err = orderService.CreateOrder(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, provider.calls)
}

func TestOrderService_CreateOrder_NoCart(t *testing.T) {
	orderService, _, _, user, _, _ := setupOrderServiceTest(t)

	_, err := orderService.CreateOrder(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestOrderService_CreateOrder_PaymentGatewayDown(t *testing.T) {
	orderService, cartService, provider, user, product, testDB := setupOrderServiceTest(t)
	provider.err = ErrPaymentGateway

	_, err := cartService.AddItem(user.ID, product.ID, 1)
	require.NoError(t, err)

	result, err := orderService.CreateOrder(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrPaymentGateway)

	// The order survives without a payment session; the cart stays empty
	require.NotNil(t, result)
	require.NotNil(t, result.Order)

	var persisted model.Order
	require.NoError(t, testDB.First(&persisted, result.Order.ID).Error)
	assert.Equal(t, model.OrderStatusCreated, persisted.Status)
	assert.Nil(t, persisted.ExternalID)

	view, err := cartService.GetCart(user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestOrderService_CreateOrder_ImmuneToLaterCatalogChanges(t *testing.T) {
	orderService, cartService, _, user, product, testDB := setupOrderServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)

	result, err := orderService.CreateOrder(context.Background(), user.ID)
	require.NoError(t, err)

	// A price change after checkout must not touch the order
	require.NoError(t, testDB.Model(&model.Product{}).
		Where("id = ?", product.ID).
		Update("price", float64(999)).Error)

	order, err := orderService.GetOrderByID(user.ID, result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(300), order.TotalPrice)
	assert.Equal(t, float64(150), order.OrderItems[0].Price)
}

func TestOrderService_GetUserOrders(t *testing.T) {
	orderService, cartService, _, user, product, _ := setupOrderServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = orderService.CreateOrder(context.Background(), user.ID)
	require.NoError(t, err)

	orders, err := orderService.GetUserOrders(user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderService_GetUserOrders_Empty(t *testing.T) {
	orderService, _, _, user, _, _ := setupOrderServiceTest(t)

	_, err := orderService.GetUserOrders(user.ID)
	assert.ErrorIs(t, err, ErrOrdersNotFound)
}

func TestOrderService_GetOrderByID_OtherUser(t *testing.T) {
	orderService, cartService, _, user, product, testDB := setupOrderServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 1)
	require.NoError(t, err)
	result, err := orderService.CreateOrder(context.Background(), user.ID)
	require.NoError(t, err)

	other := &model.User{
		Email:        "other@example.com",
		PasswordHash: "hash",
		Name:         "Other User",
		Role:         model.RoleUser,
	}
	testDB.Create(other)

	_, err = orderService.GetOrderByID(other.ID, result.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func checkoutOrder(t *testing.T, orderService OrderService, cartService CartService, userID, productID uint) *model.Order {
	t.Helper()
	_, err := cartService.AddItem(userID, productID, 1)
	require.NoError(t, err)
	result, err := orderService.CreateOrder(context.Background(), userID)
	require.NoError(t, err)
	return result.Order
}

func TestOrderService_ApplyPaymentUpdate_Paid(t *testing.T) {
	orderService, cartService, _, user, product, _ := setupOrderServiceTest(t)

	order := checkoutOrder(t, orderService, cartService, user.ID, product.ID)

	updated, err := orderService.ApplyPaymentUpdate(order.ID, "pay_abc123", model.OrderStatusPaid, `{"status":"succeeded"}`)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, updated.Status)
	assert.NotNil(t, updated.PaidAt)
	assert.Equal(t, `{"status":"succeeded"}`, updated.PaymentDetails)
}

func TestOrderService_ApplyPaymentUpdate_Idempotent(t *testing.T) {
	orderService, cartService, _, user, product, _ := setupOrderServiceTest(t)

	order := checkoutOrder(t, orderService, cartService, user.ID, product.ID)

	_, err := orderService.ApplyPaymentUpdate(order.ID, "pay_abc123", model.OrderStatusPaid, "")
	require.NoError(t, err)

	// The same webhook delivered again must not fail
	updated, err := orderService.ApplyPaymentUpdate(order.ID, "pay_abc123", model.OrderStatusPaid, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, updated.Status)
}

func TestOrderService_ApplyPaymentUpdate_TerminalStateFrozen(t *testing.T) {
	orderService, cartService, _, user, product, _ := setupOrderServiceTest(t)

	order := checkoutOrder(t, orderService, cartService, user.ID, product.ID)

	_, err := orderService.ApplyPaymentUpdate(order.ID, "pay_abc123", model.OrderStatusCancelled, "")
	require.NoError(t, err)

	_, err = orderService.ApplyPaymentUpdate(order.ID, "pay_abc123", model.OrderStatusPaid, "")
	assert.ErrorIs(t, err, ErrOrderStateConflict)
}

func TestOrderService_ApplyPaymentUpdate_ExternalIDMismatch(t *testing.T) {
	orderService, cartService, _, user, product, _ := setupOrderServiceTest(t)

	order := checkoutOrder(t, orderService, cartService, user.ID, product.ID)

	_, err := orderService.ApplyPaymentUpdate(order.ID, "pay_wrong", model.OrderStatusPaid, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_ApplyPaymentUpdate_UnknownOrder(t *testing.T) {
	orderService, _, _, _, _, _ := setupOrderServiceTest(t)

	_, err := orderService.ApplyPaymentUpdate(999, "pay_abc", model.OrderStatusPaid, "")
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}
