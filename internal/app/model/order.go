package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions is the legal status transition table. CREATED is the
// only non-terminal state; PAID, FAILED and CANCELLED are final.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Order is the immutable record of a completed checkout. Only status and
// the payment fields (external_id, payment_details, paid_at) may change
// after creation.
type Order struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	UserID         *uint          `gorm:"index" json:"user_id"`
	Status         OrderStatus    `gorm:"type:varchar(20);default:'created'" json:"status"`
	TotalQuantity  int            `gorm:"not null;check:total_quantity > 0" json:"total_quantity"`
	TotalPrice     float64        `gorm:"not null;check:total_price >= 0" json:"total_price"`
	ExternalID     *string        `gorm:"type:varchar(64);index" json:"external_id"`
	PaymentDetails string         `gorm:"type:text" json:"payment_details,omitempty"`
	PaidAt         *time.Time     `json:"paid_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	User       *User       `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is a frozen snapshot of a cart line at checkout time. Product
// name and prices are denormalized on purpose: later catalog changes must
// not rewrite order history. ProductID is a soft reference.
type OrderItem struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	OrderID     uint           `gorm:"not null;index" json:"order_id"`
	ProductID   uint           `gorm:"index" json:"product_id"`
	ProductName string         `gorm:"not null" json:"product_name"`
	Price       float64        `gorm:"not null" json:"price"`
	Quantity    int            `gorm:"not null" json:"quantity"`
	ResultPrice float64        `gorm:"not null" json:"result_price"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
