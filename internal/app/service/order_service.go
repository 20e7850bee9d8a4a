package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrdersNotFound     = errors.New("no orders found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderStateConflict = errors.New("order status transition not allowed")
)

// CheckoutResult is the outcome of a checkout: the persisted order and,
// when the payment session could be created, the URL to redirect to.
type CheckoutResult struct {
	Order      *model.Order
	PaymentURL string
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID uint) (*CheckoutResult, error)
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByID(userID, orderID uint) (*model.Order, error)
	ApplyPaymentUpdate(orderID uint, externalID string, target model.OrderStatus, details string) (*model.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	provider  PaymentProvider
	db        *gorm.DB
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	provider PaymentProvider,
	db *gorm.DB,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		provider:  provider,
		db:        db,
	}
}

// CreateOrder converts the user's cart into an order. The cart read, item
// snapshot, order insert and cart clear run in one transaction, so a
// concurrent cart change either lands before the snapshot or after the
// cart is emptied. The payment session is created after commit with no
// locks held; if the provider fails the order stays in created state
// without an external ID.
func (s *orderService) CreateOrder(ctx context.Context, userID uint) (*CheckoutResult, error) {
	logger.Info("Creating order from cart", map[string]interface{}{
		"user_id": userID,
	})

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during order creation, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": userID,
			})
		}
	}()

	var cart model.Cart
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot create order: cart does not exist", map[string]interface{}{
				"user_id": userID,
			})
			return nil, ErrCartNotFound
		}
		logger.Error("Failed to lock cart during order creation", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	var cartItems []model.CartItem
	if err := tx.Where("cart_id = ?", cart.ID).
		Preload("Product").
		Order("created_at ASC").
		Find(&cartItems).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to fetch cart items during order creation", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	if len(cartItems) == 0 {
		tx.Rollback()
		logger.Warn("Cannot create order: cart is empty", map[string]interface{}{
			"user_id": userID,
		})
		return nil, ErrEmptyCart
	}

	// Snapshot each line at its current catalog price. Orders must not
	// change when the catalog does.
	var (
		totalQuantity int
		totalPrice    float64
		orderItems    []model.OrderItem
	)
	for _, item := range cartItems {
		if item.Product == nil {
			tx.Rollback()
			logger.Warn("Product vanished during order creation", map[string]interface{}{
				"user_id":    userID,
				"product_id": item.ProductID,
			})
			return nil, ErrProductNotFound
		}

		resultPrice := item.Product.Price * float64(item.Quantity)
		orderItems = append(orderItems, model.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Product.Title,
			Price:       item.Product.Price,
			Quantity:    item.Quantity,
			ResultPrice: resultPrice,
		})
		totalQuantity += item.Quantity
		totalPrice += resultPrice
	}

	order := &model.Order{
		UserID:        &userID,
		Status:        model.OrderStatusCreated,
		TotalQuantity: totalQuantity,
		TotalPrice:    totalPrice,
		OrderItems:    orderItems,
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to create order", err, map[string]interface{}{
			"user_id":     userID,
			"total_price": totalPrice,
		})
		return nil, err
	}

	if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to clear cart after order creation", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit order transaction", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("Order created successfully", map[string]interface{}{
		"user_id":        userID,
		"order_id":       order.ID,
		"total_price":    totalPrice,
		"total_quantity": totalQuantity,
	})

	paymentURL, externalID, err := s.provider.CreatePaymentLink(ctx, order)
	if err != nil {
		// The order is already committed. It stays awaiting a payment
		// session and shows up in the reconciliation report.
		logger.Error("Order created but payment session failed", err, map[string]interface{}{
			"user_id":  userID,
			"order_id": order.ID,
		})
		return &CheckoutResult{Order: order}, err
	}

	// payment_details stays empty until the provider reports back through
	// the webhook; only the session ID is attached here.
	if err := s.orderRepo.UpdateFields(order.ID, map[string]interface{}{
		"external_id": externalID,
	}); err != nil {
		logger.Error("Failed to attach payment session to order", err, map[string]interface{}{
			"order_id":    order.ID,
			"external_id": externalID,
		})
		return nil, err
	}
	order.ExternalID = &externalID

	return &CheckoutResult{Order: order, PaymentURL: paymentURL}, nil
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	logger.Debug("Fetching user orders", map[string]interface{}{
		"user_id": userID,
	})

	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	if len(orders) == 0 {
		return nil, ErrOrdersNotFound
	}

	return orders, nil
}

func (s *orderService) GetOrderByID(userID, orderID uint) (*model.Order, error) {
	logger.Debug("Fetching order", map[string]interface{}{
		"user_id":  userID,
		"order_id": orderID,
	})

	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	// Orders of other users look like missing orders
	if order.UserID == nil || *order.UserID != userID {
		logger.Warn("Order access denied: not the owner", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return nil, ErrOrderNotFound
	}

	return order, nil
}

// ApplyPaymentUpdate moves an order through its payment lifecycle. The
// update is idempotent: re-applying the current status is a no-op, so
// at-least-once webhook delivery is safe. Transitions out of a terminal
// state are rejected.
func (s *orderService) ApplyPaymentUpdate(orderID uint, externalID string, target model.OrderStatus, details string) (*model.Order, error) {
	logger.Info("Applying payment update to order", map[string]interface{}{
		"order_id":    orderID,
		"external_id": externalID,
		"status":      target,
	})

	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Payment update for unknown order", map[string]interface{}{
				"order_id":    orderID,
				"external_id": externalID,
			})
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.ExternalID != nil && externalID != "" && *order.ExternalID != externalID {
		logger.Warn("Payment update rejected: external ID mismatch", map[string]interface{}{
			"order_id": orderID,
			"expected": *order.ExternalID,
			"received": externalID,
		})
		return nil, ErrOrderNotFound
	}

	if order.Status == target {
		logger.Info("Payment update already applied", map[string]interface{}{
			"order_id": orderID,
			"status":   order.Status,
		})
		return order, nil
	}

	if !order.Status.CanTransitionTo(target) {
		logger.Warn("Payment update rejected: illegal status transition", map[string]interface{}{
			"order_id": orderID,
			"from":     order.Status,
			"to":       target,
		})
		return nil, ErrOrderStateConflict
	}

	fields := map[string]interface{}{
		"status": target,
	}
	if details != "" {
		fields["payment_details"] = details
	}
	if order.ExternalID == nil && externalID != "" {
		fields["external_id"] = externalID
	}
	if target == model.OrderStatusPaid {
		now := time.Now()
		fields["paid_at"] = &now
	}

	if err := s.orderRepo.UpdateFields(order.ID, fields); err != nil {
		return nil, err
	}

	logger.Info("Order payment status updated", map[string]interface{}{
		"order_id": order.ID,
		"from":     order.Status,
		"to":       target,
	})

	return s.orderRepo.FindByID(order.ID)
}
