package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/events"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/payment"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

type TransactionHandler struct {
	Providers map[string]payment.Provider // keyed by payment method
	Events    *events.Publisher
}

// newTransactionNumber builds a gateway reference: timestamp prefix for
// operator legibility, random suffix so attempts created in the same
// millisecond never collide on the unique reference column.
func newTransactionNumber() string {
	return fmt.Sprintf("TRX-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// createTransactionTx creates the payment attempt and moves the order to
// awaiting_payment in one transaction. The amounts come from the stored order
// total, never from client input. The order must still be pending; the unique
// index on order_id catches the race where two requests pass that check
// concurrently.
func createTransactionTx(tx *gorm.DB, orderID uint, method, reference string) (*models.Transaction, error) {
	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrInvalidState
	}

	// One transaction row per order. A cancelled attempt is reopened in
	// place rather than inserted alongside, so the unique index holds.
	var existing models.Transaction
	err := tx.Where("order_id = ?", order.ID).First(&existing).Error
	if err == nil {
		if existing.Status != models.TransactionStatusCancelled {
			return nil, ErrInvalidState
		}
		updates := map[string]interface{}{
			"transaction_number": reference,
			"payment_method":     method,
			"total_amount":       order.Total,
			"received_amount":    order.Total,
			"status":             models.TransactionStatusPending,
		}
		if err := tx.Model(&models.Transaction{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":         models.OrderStatusAwaitingPayment,
			"payment_method": method,
		}).Error; err != nil {
			return nil, err
		}
		if err := tx.First(&existing, existing.ID).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	txn := models.Transaction{
		TransactionNumber: reference,
		OrderID:           order.ID,
		TotalAmount:       order.Total,
		ReceivedAmount:    order.Total,
		PaymentMethod:     method,
		Status:            models.TransactionStatusPending,
	}
	if err := tx.Create(&txn).Error; err != nil {
		// A concurrent attempt that slipped past the existence check loses
		// here on the unique index; answer it like the status check would.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	err = tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"status":         models.OrderStatusAwaitingPayment,
		"payment_method": method,
	}).Error
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func respondTransactionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is not awaiting a payment attempt"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create transaction"})
	}
}

type CreateTransactionRequest struct {
	OrderID       uint   `json:"order_id" binding:"required"`
	PaymentMethod string `json:"payment_method"`
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodQRCode
	}
	switch req.PaymentMethod {
	case models.PaymentMethodQRCode, models.PaymentMethodVNPay, models.PaymentMethodVietQR:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported payment method"})
		return
	}

	var txn *models.Transaction
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = createTransactionTx(tx, req.OrderID, req.PaymentMethod, newTransactionNumber())
		return err
	})
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// GenerateVietQR renders a bank-transfer QR for an order without opening a
// payment attempt. The amount is the quantity-weighted order total.
func (h *TransactionHandler) GenerateVietQR(c *gin.Context) {
	var order models.Order
	err := database.DB.Preload("OrderDetails").First(&order, c.Param("orderID")).Error
	if err != nil || len(order.OrderDetails) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	provider, ok := h.Providers[models.PaymentMethodVietQR]
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VietQR is not configured"})
		return
	}

	result, err := provider.Initiate(c.Request.Context(), &order, newTransactionNumber(), c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qr_image":    result.QRImage,
		"total_price": order.Total,
	})
}

// GenerateQRCode opens a qr_code payment attempt and returns a scannable
// payload referencing the transaction number.
func (h *TransactionHandler) GenerateQRCode(c *gin.Context) {
	var order models.Order
	if err := database.DB.First(&order, c.Param("orderID")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	var txn *models.Transaction
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = createTransactionTx(tx, order.ID, models.PaymentMethodQRCode, newTransactionNumber())
		return err
	})
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	payload := fmt.Sprintf("%s/pay?ref=%s", config.AppConfig.Payment.QRGatewayURL, txn.TransactionNumber)
	image, err := payment.EncodeQR(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"qr_image":       image,
		"transaction_id": txn.ID,
	})
}

type VNPayRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
}

// CreateVNPayPayment opens a vnpay payment attempt and returns the signed
// redirect URL. The transaction carries the same reference embedded in the
// URL, so the return callback can find it.
func (h *TransactionHandler) CreateVNPayPayment(c *gin.Context) {
	var req VNPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, ok := h.Providers[models.PaymentMethodVNPay]
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VNPay is not configured"})
		return
	}

	reference := newTransactionNumber()

	var txn *models.Transaction
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = createTransactionTx(tx, req.OrderID, models.PaymentMethodVNPay, reference)
		return err
	})
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	var order models.Order
	if err := database.DB.First(&order, req.OrderID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload order"})
		return
	}

	result, err := provider.Initiate(c.Request.Context(), &order, reference, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build payment URL"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment_url":    result.PayURL,
		"transaction_id": txn.ID,
	})
}

// markPaid marks a transaction completed and its order paid in one database
// transaction, then publishes the payment event. Callers must have verified
// the gateway's word before calling.
func (h *TransactionHandler) markPaid(c *gin.Context, txn *models.Transaction) error {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(map[string]interface{}{
			"status":          models.TransactionStatusCompleted,
			"received_amount": txn.ReceivedAmount,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", txn.OrderID).
			Update("status", models.OrderStatusPaid).Error
	})
	if err != nil {
		return err
	}

	var order models.Order
	if err := database.DB.First(&order, txn.OrderID).Error; err == nil {
		h.Events.PaymentCompleted(c.Request.Context(), &order, txn)
	}
	return nil
}

// VNPayReturn reconciles the gateway's redirect callback. The signature is
// verified before anything else; a mismatch mutates nothing.
func (h *TransactionHandler) VNPayReturn(c *gin.Context) {
	provider, ok := h.Providers[models.PaymentMethodVNPay]
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VNPay is not configured"})
		return
	}

	result, err := provider.VerifyCallback(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid signature"})
		return
	}

	var txn models.Transaction
	if err := database.DB.Where("transaction_number = ?", result.Reference).First(&txn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	if !result.Success {
		c.JSON(http.StatusOK, gin.H{
			"success":       false,
			"message":       "Payment failed",
			"response_code": result.ResponseCode,
		})
		return
	}

	// A replayed success callback is acknowledged without re-applying.
	if txn.Status == models.TransactionStatusCompleted {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment already confirmed"})
		return
	}

	if !result.ReceivedAmount.IsZero() {
		txn.ReceivedAmount = result.ReceivedAmount
	}
	if err := h.markPaid(c, &txn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment confirmed"})
}

// CheckPaymentStatus reports the state of an order's payment attempt,
// polling the gateway for unresolved attempts. Completed transactions
// short-circuit: the call is idempotent and never re-fires side effects.
func (h *TransactionHandler) CheckPaymentStatus(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}

	var txn models.Transaction
	if err := database.DB.Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	switch txn.Status {
	case models.TransactionStatusCompleted:
		c.JSON(http.StatusOK, gin.H{"status": models.TransactionStatusCompleted})
		return
	case models.TransactionStatusCancelled:
		c.JSON(http.StatusOK, gin.H{"status": models.TransactionStatusCancelled})
		return
	}

	provider, ok := h.Providers[txn.PaymentMethod]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": models.TransactionStatusPending})
		return
	}

	status, err := provider.PollStatus(c.Request.Context(), &txn)
	if err != nil {
		// Payment polling fails loudly, unlike the best-effort geocoder.
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unreachable"})
		return
	}

	switch status {
	case payment.StatusPaid:
		if err := h.markPaid(c, &txn); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.TransactionStatusCompleted})
	case payment.StatusFailed:
		c.JSON(http.StatusOK, gin.H{"status": "failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": models.TransactionStatusPending})
	}
}

// CancelTransaction abandons an order's pending payment attempt and releases
// the order back to pending so a new attempt can be opened.
func (h *TransactionHandler) CancelTransaction(c *gin.Context) {
	var txn models.Transaction
	if err := database.DB.Where("order_id = ?", c.Param("orderID")).First(&txn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	if txn.Status != models.TransactionStatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only pending transactions can be cancelled"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Transaction{}).Where("id = ?", txn.ID).
			Update("status", models.TransactionStatusCancelled).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", txn.OrderID).Updates(map[string]interface{}{
			"status":         models.OrderStatusPending,
			"payment_method": "",
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel transaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction cancelled"})
}
