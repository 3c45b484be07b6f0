package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending         = "pending"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusCancelled       = "cancelled"
)

// IsTerminalOrderStatus reports whether no transition may leave the status.
// Transitions: pending -> awaiting_payment -> paid; pending and
// awaiting_payment may also move to cancelled.
func IsTerminalOrderStatus(status string) bool {
	return status == OrderStatusPaid || status == OrderStatusCancelled
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     int64           `gorm:"not null;index" json:"order_number"` // epoch millis; human-visible reference, not globally unique
	OrderDate       time.Time       `json:"order_date"`
	Total           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	DeliveryAddress string          `gorm:"type:text" json:"delivery_address"`
	DeliveryPhone   string          `gorm:"size:15" json:"delivery_phone"`
	PaymentMethod   string          `gorm:"size:20" json:"payment_method"`
	Status          string          `gorm:"size:20;default:'pending';index" json:"status"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	User            User            `gorm:"foreignKey:UserID" json:"user"`
	OrderDetails    []OrderDetail   `gorm:"foreignKey:OrderID" json:"order_details"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderDetail.Price is a snapshot of the product price at write time. It is
// never re-read from the catalog once the row exists.
type OrderDetail struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}
