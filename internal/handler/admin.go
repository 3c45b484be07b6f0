package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

type AdminHandler struct{}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := database.DB.Preload("Role").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var role models.Role
	if err := database.DB.Where("name = ?", req.Role).First(&role).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	result := database.DB.Model(&models.User{}).Where("id = ?", c.Param("id")).Update("role_id", role.ID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := database.DB.Model(&models.User{}).Where("id = ?", c.Param("id")).Update("is_active", *req.IsActive)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	var totalUsers int64
	var totalProducts int64
	database.DB.Model(&models.User{}).Count(&totalUsers)
	database.DB.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive).Count(&totalProducts)

	// Orders by status
	type StatusCount struct {
		Status string
		Count  int64
	}
	var orderCounts []StatusCount
	database.DB.Model(&models.Order{}).
		Select("status, count(id) as count").
		Group("status").
		Scan(&orderCounts)

	// Paid revenue
	var paidOrders []models.Order
	database.DB.Where("status = ?", models.OrderStatusPaid).Find(&paidOrders)
	revenue := decimal.Zero
	for _, order := range paidOrders {
		revenue = revenue.Add(order.Total)
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":      totalUsers,
		"active_products":  totalProducts,
		"orders_by_status": orderCounts,
		"paid_revenue":     revenue,
	})
}
