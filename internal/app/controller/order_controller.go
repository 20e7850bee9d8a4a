package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/avolkau/lavka-backend/internal/app/service"
	apperrors "github.com/avolkau/lavka-backend/internal/errors"
	"github.com/avolkau/lavka-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

// CreateOrder converts the user's cart into an order and returns the
// payment URL to redirect to
// POST /api/v1/orders
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	result, err := ctrl.orderService.CreateOrder(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCartNotFound):
			apperrors.NotFound(c, apperrors.CartNotFound, "Cart not found")
		case errors.Is(err, service.ErrEmptyCart):
			apperrors.NotFound(c, apperrors.CartItemsNotFound, "Cart is empty")
		case errors.Is(err, service.ErrProductNotFound):
			apperrors.NotFound(c, apperrors.ProductNotFound, "A product in the cart no longer exists")
		case errors.Is(err, service.ErrPaymentGateway):
			// The order is committed; only the payment session failed
			fields := map[string]interface{}{"user_id": userID}
			if result != nil && result.Order != nil {
				fields["order_id"] = result.Order.ID
			}
			log.Error("Payment session creation failed for order", err, fields)
			apperrors.BadGateway(c, apperrors.PaymentGatewayError, "Payment provider is unavailable, please retry later")
		default:
			log.Error("Failed to create order", err, map[string]interface{}{
				"user_id": userID,
			})
			apperrors.InternalError(c, "")
		}
		return
	}

	log.Info("Order created", map[string]interface{}{
		"user_id":  userID,
		"order_id": result.Order.ID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Order created successfully",
		"order":       result.Order,
		"payment_url": result.PaymentURL,
	})
}

// ListOrders returns the user's orders
// GET /api/v1/orders
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(userID)
	if err != nil {
		if errors.Is(err, service.ErrOrdersNotFound) {
			apperrors.NotFound(c, apperrors.OrdersNotFound, "No orders found")
			return
		}
		log.Error("Failed to fetch orders", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder returns one of the user's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid order ID")
		return
	}

	order, err := ctrl.orderService.GetOrderByID(userID, uint(orderID))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
			return
		}
		log.Error("Failed to fetch order", err, map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
