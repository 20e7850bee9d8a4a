package repository

import (
	"time"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/pkg/logger"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(order *model.Order) error
	FindByID(id uint) (*model.Order, error)
	FindByUserID(userID uint) ([]model.Order, error)
	FindByExternalID(externalID string) (*model.Order, error)
	UpdateFields(id uint, fields map[string]interface{}) error
	FindOrphaned(olderThan time.Time) ([]model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder() *gorm.DB {
	return r.db.Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

func (r *orderRepository) Create(order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"user_id":        order.UserID,
		"total_price":    order.TotalPrice,
		"total_quantity": order.TotalQuantity,
	})

	if err := r.db.Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"user_id":     order.UserID,
			"total_price": order.TotalPrice,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"total_price": order.TotalPrice,
	})
	return nil
}

func (r *orderRepository) FindByID(id uint) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder().First(&order, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
				"order_id": id,
			})
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(userID uint) ([]model.Order, error) {
	var orders []model.Order
	if err := r.preloadOrder().Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Orders found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

func (r *orderRepository) FindByExternalID(externalID string) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder().Where("external_id = ?", externalID).
		First(&order).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find order by external ID in database", err, map[string]interface{}{
				"external_id": externalID,
			})
		}
		return nil, err
	}
	return &order, nil
}

// UpdateFields persists a partial update. Only payment reconciliation
// columns are allowed; item snapshots and totals stay immutable.
func (r *orderRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	allowed := map[string]bool{
		"status":          true,
		"external_id":     true,
		"payment_details": true,
		"paid_at":         true,
	}
	update := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if allowed[k] {
			update[k] = v
		}
	}

	logger.Debug("Updating order fields in database", map[string]interface{}{
		"order_id": id,
		"fields":   len(update),
	})

	if err := r.db.Model(&model.Order{}).Where("id = ?", id).
		Updates(update).Error; err != nil {
		logger.Error("Failed to update order fields in database", err, map[string]interface{}{
			"order_id": id,
		})
		return err
	}
	return nil
}

// FindOrphaned returns orders still awaiting a payment session: created
// before the cutoff and never linked to a provider payment.
func (r *orderRepository) FindOrphaned(olderThan time.Time) ([]model.Order, error) {
	var orders []model.Order
	if err := r.db.Where("status = ? AND external_id IS NULL AND created_at < ?",
		model.OrderStatusCreated, olderThan).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orphaned orders in database", err, map[string]interface{}{
			"older_than": olderThan,
		})
		return nil, err
	}

	logger.Debug("Orphaned orders found in database", map[string]interface{}{
		"count": len(orders),
	})
	return orders, nil
}
