package handler

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidState       = errors.New("operation not allowed in current status")
	ErrOpenPaymentAttempt = errors.New("order has an open payment attempt")
)

// ProductUnavailableError aborts an order write when a line item references a
// product that is missing or not active. The whole order rolls back; the
// offending product id travels with the error.
type ProductUnavailableError struct {
	ProductID uint
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is not available", e.ProductID)
}
