package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/service"
	"github.com/avolkau/lavka-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// webhookDedupeTTL bounds how long processed event IDs are remembered
const webhookDedupeTTL = 24 * time.Hour

// EventCache remembers successfully processed webhook deliveries so
// duplicates can be skipped without touching the order ledger. A nil cache
// disables the fast path; correctness then rests on the idempotent update.
type EventCache interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, expiry time.Duration) error
}

type WebhookController struct {
	orderService service.OrderService
	webhookToken string
	events       EventCache
}

func NewWebhookController(orderService service.OrderService, webhookToken string, events EventCache) *WebhookController {
	return &WebhookController{
		orderService: orderService,
		webhookToken: webhookToken,
		events:       events,
	}
}

type webhookPayload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// eventStatus maps provider events to order statuses
var eventStatus = map[string]model.OrderStatus{
	"payment.succeeded": model.OrderStatusPaid,
	"payment.canceled":  model.OrderStatusCancelled,
}

// HandlePaymentWebhook processes payment notifications. Delivery is
// at-least-once, so the handler must be idempotent. The provider retries
// on non-200 responses, so the outcome is reported in the body and the
// status is always 200 once the payload is readable.
// POST /webhooks/yookassa
func (ctrl *WebhookController) HandlePaymentWebhook(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if ctrl.webhookToken != "" && c.GetHeader("X-Webhook-Token") != ctrl.webhookToken {
		log.Warn("Webhook rejected: bad token", map[string]interface{}{
			"ip": c.ClientIP(),
		})
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "invalid webhook token",
		})
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Warn("Webhook payload unreadable", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": "invalid payload",
		})
		return
	}

	log.Info("Payment webhook received", map[string]interface{}{
		"event":      payload.Event,
		"payment_id": payload.Object.ID,
	})

	target, known := eventStatus[payload.Event]
	if !known {
		// Unrecognized events are acknowledged and dropped
		log.Info("Ignoring unhandled webhook event", map[string]interface{}{
			"event": payload.Event,
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	orderID, err := strconv.ParseUint(payload.Object.Metadata["order_id"], 10, 32)
	if err != nil {
		log.Warn("Webhook has no usable order reference", map[string]interface{}{
			"event":      payload.Event,
			"payment_id": payload.Object.ID,
			"metadata":   payload.Object.Metadata,
		})
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": "missing order_id metadata",
		})
		return
	}

	// Fast path for duplicate deliveries. Events are marked only after a
	// successful apply, so a transient failure here never swallows the
	// provider's retry.
	dedupeKey := payload.Object.ID + ":" + payload.Event
	if ctrl.events != nil {
		seen, err := ctrl.events.IsProcessed(c.Request.Context(), dedupeKey)
		if err == nil && seen {
			log.Info("Duplicate webhook delivery skipped", map[string]interface{}{
				"event":      payload.Event,
				"payment_id": payload.Object.ID,
			})
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
	}

	details, _ := json.Marshal(payload.Object)

	_, err = ctrl.orderService.ApplyPaymentUpdate(uint(orderID), payload.Object.ID, target, string(details))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			log.Warn("Webhook for unknown order", map[string]interface{}{
				"order_id":   orderID,
				"payment_id": payload.Object.ID,
			})
			c.JSON(http.StatusOK, gin.H{
				"status":  "error",
				"message": "order not found",
			})
		case errors.Is(err, service.ErrOrderStateConflict):
			log.Warn("Webhook rejected by order state machine", map[string]interface{}{
				"order_id": orderID,
				"event":    payload.Event,
			})
			c.JSON(http.StatusOK, gin.H{
				"status":  "error",
				"message": "status transition not allowed",
			})
		default:
			log.Error("Failed to apply payment update", err, map[string]interface{}{
				"order_id": orderID,
			})
			c.JSON(http.StatusOK, gin.H{
				"status":  "error",
				"message": "internal error",
			})
		}
		return
	}

	if ctrl.events != nil {
		if err := ctrl.events.MarkProcessed(c.Request.Context(), dedupeKey, webhookDedupeTTL); err != nil {
			log.Warn("Failed to remember processed webhook event", map[string]interface{}{
				"event":      payload.Event,
				"payment_id": payload.Object.ID,
			})
		}
	}

	log.Info("Payment webhook applied", map[string]interface{}{
		"order_id": orderID,
		"event":    payload.Event,
		"status":   target,
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
