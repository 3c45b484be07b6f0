package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusCancelled = "cancelled"
)

const (
	PaymentMethodQRCode = "qr_code"
	PaymentMethodVNPay  = "vnpay"
	PaymentMethodVietQR = "vietqr"
)

// Transaction is one payment attempt against an Order. The unique index on
// OrderID enforces one attempt per order; a second insert fails at the
// database even if two requests pass the status check concurrently.
type Transaction struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	TransactionNumber string          `gorm:"size:50;uniqueIndex;not null" json:"transaction_number"`
	OrderID           uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	Order             Order           `gorm:"foreignKey:OrderID" json:"order"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	ReceivedAmount    decimal.Decimal `gorm:"type:decimal(10,2)" json:"received_amount"`
	PaymentMethod     string          `gorm:"size:20;not null" json:"payment_method"`
	Status            string          `gorm:"size:20;default:'pending';index" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
