package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;unique;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Products    []Product `json:"-"`
}

const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inActive"
	ProductStatusWaiting  = "waiting"
)

// Product carries the live catalog price. Orders never store a reference to
// this price; they snapshot it into OrderDetail at creation time.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	ImageURL    string          `gorm:"size:255" json:"image_url"`
	Status      string          `gorm:"size:20;default:'active';index" json:"status"`
	CategoryID  uint            `json:"category_id"`
	Category    Category        `gorm:"foreignKey:CategoryID" json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
