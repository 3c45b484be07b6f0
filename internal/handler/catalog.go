package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

const (
	productCacheKey = "catalog:products"
	productCacheTTL = 10 * time.Minute
)

type CatalogHandler struct {
	RDB *redis.Client
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	var categories []models.Category
	if err := database.DB.Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}
	c.JSON(http.StatusOK, categories)
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := models.Category{Name: req.Name, Description: req.Description}
	if err := database.DB.Create(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var category models.Category
	if err := database.DB.First(&category, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category.Name = req.Name
	category.Description = req.Description
	if err := database.DB.Save(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	result := database.DB.Delete(&models.Category{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// ListProducts serves the active catalog from Redis when possible, falling
// back to the database and repopulating the cache on a miss.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	if h.RDB != nil {
		cached, err := h.RDB.Get(c, productCacheKey).Result()
		if err == nil {
			var products []models.Product
			if json.Unmarshal([]byte(cached), &products) == nil {
				c.JSON(http.StatusOK, products)
				return
			}
		}
	}

	var products []models.Product
	if err := database.DB.Preload("Category").Where("status = ?", models.ProductStatusActive).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	if h.RDB != nil {
		if payload, err := json.Marshal(products); err == nil {
			if err := h.RDB.Set(c, productCacheKey, payload, productCacheTTL).Err(); err != nil {
				log.Printf("Failed to cache product list: %v", err)
			}
		}
	}

	c.JSON(http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	var product models.Product
	if err := database.DB.Preload("Category").First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

type ProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	ImageURL    string          `json:"image_url"`
	Status      string          `json:"status"`
	CategoryID  uint            `json:"category_id" binding:"required"`
}

func validProductStatus(status string) bool {
	switch status {
	case models.ProductStatusActive, models.ProductStatusInactive, models.ProductStatusWaiting:
		return true
	}
	return false
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
		return
	}
	if req.Status == "" {
		req.Status = models.ProductStatusWaiting
	}
	if !validProductStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product status"})
		return
	}

	var category models.Category
	if err := database.DB.First(&category, req.CategoryID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
		return
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		ImageURL:    req.ImageURL,
		Status:      req.Status,
		CategoryID:  req.CategoryID,
	}
	if err := database.DB.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	h.invalidateProductCache(c)
	c.JSON(http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var product models.Product
	if err := database.DB.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
		return
	}
	if req.Status != "" && !validProductStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product status"})
		return
	}

	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price.Round(2)
	product.ImageURL = req.ImageURL
	product.CategoryID = req.CategoryID
	if req.Status != "" {
		product.Status = req.Status
	}
	if err := database.DB.Save(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	h.invalidateProductCache(c)
	c.JSON(http.StatusOK, product)
}

// DeleteProduct retires a product from sale. The row stays for order
// history; only the status changes.
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	result := database.DB.Model(&models.Product{}).
		Where("id = ?", c.Param("id")).
		Update("status", models.ProductStatusInactive)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	h.invalidateProductCache(c)
	c.JSON(http.StatusOK, gin.H{"message": "Product retired"})
}

func (h *CatalogHandler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file required"})
		return
	}

	filename := uuid.New().String() + filepath.Ext(file.Filename)
	dst := filepath.Join("uploads", filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_url": fmt.Sprintf("/uploads/%s", filename)})
}

func (h *CatalogHandler) invalidateProductCache(c *gin.Context) {
	if h.RDB == nil {
		return
	}
	if err := h.RDB.Del(c, productCacheKey).Err(); err != nil {
		log.Printf("Failed to invalidate product cache: %v", err)
	}
}
