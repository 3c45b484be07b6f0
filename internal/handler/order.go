package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/LVQT-ss/SHOPC-sub000/internal/events"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

type OrderHandler struct {
	RDB    *redis.Client
	Events *events.Publisher
}

type OrderItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress string             `json:"delivery_address"`
	DeliveryPhone   string             `json:"delivery_phone"`
}

// buildOrderDetails resolves every line item against the live catalog inside
// the caller's transaction. The unit price is always the product's current
// stored price; client-supplied prices are never read. Any missing or
// non-active product aborts the whole set.
func buildOrderDetails(tx *gorm.DB, items []OrderItemRequest) ([]models.OrderDetail, decimal.Decimal, error) {
	details := make([]models.OrderDetail, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		var product models.Product
		err := tx.Where("id = ? AND status = ?", item.ProductID, models.ProductStatusActive).
			First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, decimal.Zero, &ProductUnavailableError{ProductID: item.ProductID}
			}
			return nil, decimal.Zero, err
		}

		details = append(details, models.OrderDetail{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return details, total.Round(2), nil
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Duplicate submissions with the same key are rejected before any write.
	idemKey := c.GetHeader("Idempotency-Key")
	if idemKey != "" && h.RDB != nil {
		ok, err := h.RDB.SetNX(c, "orders:idem:"+idemKey, userID, 24*time.Hour).Result()
		if err == nil && !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "Duplicate order submission"})
			return
		}
	}

	now := time.Now()
	order := models.Order{
		OrderNumber:     now.UnixMilli(),
		OrderDate:       now,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryPhone:   req.DeliveryPhone,
		Status:          models.OrderStatusPending,
		UserID:          userID,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		details, total, err := buildOrderDetails(tx, req.Items)
		if err != nil {
			return err
		}

		order.Total = total
		if err := tx.Omit("OrderDetails").Create(&order).Error; err != nil {
			return err
		}

		for i := range details {
			details[i].OrderID = order.ID
		}
		if err := tx.Create(&details).Error; err != nil {
			return err
		}

		order.OrderDetails = details
		return nil
	})
	if err != nil {
		// No order was written, so the key must not block an honest retry.
		if idemKey != "" && h.RDB != nil {
			if delErr := h.RDB.Del(c, "orders:idem:"+idemKey).Err(); delErr != nil {
				log.Printf("Failed to release idempotency key %s: %v", idemKey, delErr)
			}
		}
		var unavailable *ProductUnavailableError
		if errors.As(err, &unavailable) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      unavailable.Error(),
				"product_id": unavailable.ProductID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	h.Events.OrderCreated(c.Request.Context(), &order)
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	role := c.MustGet("role").(string)

	query := database.DB.Preload("OrderDetails").Order("order_date desc")
	// The ownership filter comes from the token, never from client input.
	if !models.IsElevatedRole(role) {
		query = query.Where("user_id = ?", userID)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListActiveOrders(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	role := c.MustGet("role").(string)

	query := database.DB.Preload("OrderDetails").
		Where("status IN ?", []string{models.OrderStatusPending, models.OrderStatusAwaitingPayment}).
		Order("order_date desc")
	if !models.IsElevatedRole(role) {
		query = query.Where("user_id = ?", userID)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) MyOrders(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var orders []models.Order
	err := database.DB.Preload("OrderDetails").
		Where("user_id = ?", userID).
		Order("order_date desc").
		Find(&orders).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// loadOwnedOrder fetches an order and applies the ownership rule: a
// non-elevated caller asking for another user's order gets a plain not-found,
// revealing nothing about the order's existence.
func loadOwnedOrder(c *gin.Context, preloadDetails bool) (*models.Order, bool) {
	userID := c.MustGet("userID").(uint)
	role := c.MustGet("role").(string)

	query := database.DB
	if preloadDetails {
		query = query.Preload("OrderDetails").Preload("OrderDetails.Product")
	}

	var order models.Order
	if err := query.First(&order, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	if !models.IsElevatedRole(role) && order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	return &order, true
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, ok := loadOwnedOrder(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, order)
}

type UpdateOrderRequest struct {
	Items           *[]OrderItemRequest `json:"items"`
	DeliveryAddress *string             `json:"delivery_address"`
	DeliveryPhone   *string             `json:"delivery_phone"`
	Status          *string             `json:"status"`
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	order, ok := loadOwnedOrder(c, false)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if models.IsTerminalOrderStatus(order.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order can no longer be modified"})
		return
	}
	if req.Status != nil && *req.Status != models.OrderStatusCancelled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status may only be changed to cancelled"})
		return
	}
	if req.Items != nil && len(*req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order must keep at least one line item"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// Omitted scalar fields keep their existing values.
		if req.DeliveryAddress != nil {
			order.DeliveryAddress = *req.DeliveryAddress
		}
		if req.DeliveryPhone != nil {
			order.DeliveryPhone = *req.DeliveryPhone
		}
		if req.Status != nil {
			order.Status = *req.Status
		}

		if req.Items != nil {
			// A pending transaction snapshotted the current total; changing
			// the items underneath it would let the gateway confirm a stale
			// amount. The attempt must be cancelled first.
			var open int64
			err := tx.Model(&models.Transaction{}).
				Where("order_id = ? AND status = ?", order.ID, models.TransactionStatusPending).
				Count(&open).Error
			if err != nil {
				return err
			}
			if open > 0 {
				return ErrOpenPaymentAttempt
			}

			// Line items are replaced wholesale, with the same validation
			// and price-snapshot rules as creation.
			if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderDetail{}).Error; err != nil {
				return err
			}
			details, total, err := buildOrderDetails(tx, *req.Items)
			if err != nil {
				return err
			}
			for i := range details {
				details[i].OrderID = order.ID
			}
			if err := tx.Create(&details).Error; err != nil {
				return err
			}
			order.Total = total
		}

		return tx.Omit("OrderDetails").Save(order).Error
	})
	if err != nil {
		if errors.Is(err, ErrOpenPaymentAttempt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cancel the open payment attempt before changing the order items"})
			return
		}
		var unavailable *ProductUnavailableError
		if errors.As(err, &unavailable) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      unavailable.Error(),
				"product_id": unavailable.ProductID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	var updated models.Order
	if err := database.DB.Preload("OrderDetails").Preload("OrderDetails.Product").First(&updated, order.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload order"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteOrder is a soft delete: the order flips to cancelled and its line
// items are removed, but the order row itself survives.
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	order, ok := loadOwnedOrder(c, false)
	if !ok {
		return
	}

	if models.IsTerminalOrderStatus(order.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order can no longer be cancelled"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusCancelled).Error; err != nil {
			return err
		}
		return tx.Where("order_id = ?", order.ID).Delete(&models.OrderDetail{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Order %d cancelled", order.OrderNumber)})
}
