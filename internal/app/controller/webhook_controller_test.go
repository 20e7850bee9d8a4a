package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/internal/app/service"
	"github.com/avolkau/lavka-backend/internal/db"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type webhookFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	order   *model.Order
	service service.OrderService
}

// fakeEventCache is an in-memory stand-in for the redis-backed cache
type fakeEventCache struct {
	processed map[string]bool
}

func newFakeEventCache() *fakeEventCache {
	return &fakeEventCache{processed: map[string]bool{}}
}

func (f *fakeEventCache) IsProcessed(_ context.Context, eventID string) (bool, error) {
	return f.processed[eventID], nil
}

func (f *fakeEventCache) MarkProcessed(_ context.Context, eventID string, _ time.Duration) error {
	f.processed[eventID] = true
	return nil
}

func setupWebhookTest(t *testing.T, webhookToken string, events EventCache) *webhookFixture {
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
	webhookController := NewWebhookController(orderService, webhookToken, events)

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

	_, err = cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)
	result, err := orderService.CreateOrder(context.Background(), user.ID)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/yookassa", webhookController.HandlePaymentWebhook)

	return &webhookFixture{
		router:  router,
		db:      testDB,
		order:   result.Order,
		service: orderService,
	}
}

func webhookBody(event, paymentID string, orderID uint) []byte {
	body, _ := json.Marshal(gin.H{
		"event": event,
		"object": gin.H{
			"id":     paymentID,
			"status": "succeeded",
			"metadata": gin.H{
				"order_id": fmt.Sprintf("%d", orderID),
			},
		},
	})
	return body
}

func postWebhook(f *webhookFixture, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/yookassa", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestWebhookController_PaymentSucceeded(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	w := postWebhook(f, webhookBody("payment.succeeded", "pay_abc123", f.order.ID), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, updated.Status)
	assert.NotNil(t, updated.PaidAt)
}

func TestWebhookController_PaymentCanceled(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	w := postWebhook(f, webhookBody("payment.canceled", "pay_abc123", f.order.ID), "")

	assert.Equal(t, http.StatusOK, w.Code)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusCancelled, updated.Status)
}

func TestWebhookController_DuplicateDeliveryIsHarmless(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	body := webhookBody("payment.succeeded", "pay_abc123", f.order.ID)

	w := postWebhook(f, body, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = postWebhook(f, body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, updated.Status)
}

func TestWebhookController_CancelAfterPaidReportsError(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	w := postWebhook(f, webhookBody("payment.succeeded", "pay_abc123", f.order.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Conflicting transition: acknowledged with 200 but reported as error
	w = postWebhook(f, webhookBody("payment.canceled", "pay_abc123", f.order.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, updated.Status)
}

func TestWebhookController_UnknownOrder(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	w := postWebhook(f, webhookBody("payment.succeeded", "pay_abc123", 999), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestWebhookController_UnknownEventIgnored(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	w := postWebhook(f, webhookBody("refund.succeeded", "pay_abc123", f.order.ID), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusCreated, updated.Status)
}

func TestWebhookController_MissingOrderMetadata(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	body, _ := json.Marshal(gin.H{
		"event": "payment.succeeded",
		"object": gin.H{
			"id": "pay_abc123",
		},
	})
	w := postWebhook(f, body, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestWebhookController_TokenRequired(t *testing.T) {
	f := setupWebhookTest(t, "secret-token", nil)

	body := webhookBody("payment.succeeded", "pay_abc123", f.order.ID)

	w := postWebhook(f, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(f, body, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(f, body, "secret-token")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookController_EventMarkedOnlyAfterSuccessfulApply(t *testing.T) {
	events := newFakeEventCache()
	f := setupWebhookTest(t, "", events)

	// A delivery that fails to apply must not be remembered, otherwise the
	// provider's retry would be skipped and the update lost
	w := postWebhook(f, webhookBody("payment.succeeded", "pay_abc123", 999), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
	assert.False(t, events.processed["pay_abc123:payment.succeeded"])

	// The retry for the real order applies and is then remembered
	w = postWebhook(f, webhookBody("payment.succeeded", "pay_abc123", f.order.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.True(t, events.processed["pay_abc123:payment.succeeded"])

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, updated.Status)
}

func TestWebhookController_CachedDuplicateSkipsLedger(t *testing.T) {
	events := newFakeEventCache()
	f := setupWebhookTest(t, "", events)

	events.processed["pay_abc123:payment.canceled"] = true

	w := postWebhook(f, webhookBody("payment.canceled", "pay_abc123", f.order.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusCreated, updated.Status)
}

func TestWebhookController_ExternalIDMismatch(t *testing.T) {
	f := setupWebhookTest(t, "", nil)

	w := postWebhook(f, webhookBody("payment.succeeded", "pay_other", f.order.ID), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)

	var updated model.Order
	require.NoError(t, f.db.First(&updated, f.order.ID).Error)
	assert.Equal(t, model.OrderStatusCreated, updated.Status)
}
