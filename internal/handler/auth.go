package handler

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/LVQT-ss/SHOPC-sub000/internal/geo"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/utils"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

const invalidCredentialsMsg = "Invalid username or password"

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,50}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

type AuthHandler struct {
	Geocoder *geo.Geocoder
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !usernamePattern.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username"})
		return
	}
	if !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}
	if len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
		return
	}

	var existing models.User
	if err := database.DB.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email already in use"})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	var customerRole models.Role
	if err := database.DB.Where("name = ?", models.RoleCustomer).First(&customerRole).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve customer role"})
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Address:      req.Address,
		Phone:        req.Phone,
		RoleID:       customerRole.ID,
		IsActive:     true,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Account created successfully",
		"id":       user.ID,
		"username": user.Username,
	})
}

type LoginRequest struct {
	Username   string   `json:"username" binding:"required"`
	Password   string   `json:"password" binding:"required"`
	DeviceInfo string   `json:"device_info"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.Preload("Role").Where("username = ?", req.Username).First(&user).Error; err != nil {
		// Unknown username still leaves an audit row, with no user attached.
		h.recordAttempt(c, nil, req, models.LoginStatusFailed, "")
		c.JSON(http.StatusUnauthorized, gin.H{"message": invalidCredentialsMsg})
		return
	}

	if !user.IsActive {
		h.recordAttempt(c, &user.ID, req, models.LoginStatusFailed, "")
		c.JSON(http.StatusForbidden, gin.H{"message": "User is inactive"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		h.recordAttempt(c, &user.ID, req, models.LoginStatusFailed, "")
		c.JSON(http.StatusUnauthorized, gin.H{"message": invalidCredentialsMsg})
		return
	}

	// Best-effort place name; a geocoder failure must never fail the login.
	location := ""
	if h.Geocoder != nil && req.Latitude != nil && req.Longitude != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		name, err := h.Geocoder.Reverse(ctx, *req.Latitude, *req.Longitude)
		if err != nil {
			log.Printf("Reverse geocode failed for user %d: %v", user.ID, err)
		} else {
			location = name
		}
	}

	h.recordAttempt(c, &user.ID, req, models.LoginStatusSuccess, location)

	token, err := utils.GenerateToken(user.ID, user.Role.Name, user.Email, user.Username, user.Phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user, // password hash excluded via json tag
	})
}

func (h *AuthHandler) recordAttempt(c *gin.Context, userID *uint, req LoginRequest, status, location string) {
	entry := models.LoginHistory{
		UserID:       userID,
		LoginTime:    time.Now(),
		IPAddress:    c.ClientIP(),
		DeviceInfo:   req.DeviceInfo,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: location,
		Status:       status,
	}
	if err := database.DB.Create(&entry).Error; err != nil {
		log.Printf("Failed to record login attempt: %v", err)
	}
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
		return
	}
	if !utils.CheckPasswordHash(req.OldPassword, user.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Old password is incorrect"})
		return
	}
	if len(req.NewPassword) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
		return
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hashedPassword).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// MyLoginHistory returns the caller's own audit rows, newest first.
func (h *AuthHandler) MyLoginHistory(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	query := database.DB.Model(&models.LoginHistory{}).Where("user_id = ?", userID)
	h.listHistory(c, query)
}

// AllLoginHistory returns every audit row for elevated callers, with
// pagination, a date range and an approximate radius filter.
func (h *AuthHandler) AllLoginHistory(c *gin.Context) {
	query := database.DB.Model(&models.LoginHistory{}).Preload("User").Preload("User.Role")
	h.listHistory(c, query)
}

func (h *AuthHandler) listHistory(c *gin.Context, query *gorm.DB) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp"})
			return
		}
		query = query.Where("login_time >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp"})
			return
		}
		query = query.Where("login_time <= ?", t)
	}

	if latStr, longStr, radiusStr := c.Query("lat"), c.Query("long"), c.Query("radius_km"); radiusStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		long, longErr := strconv.ParseFloat(longStr, 64)
		radius, radiusErr := strconv.ParseFloat(radiusStr, 64)
		if latErr != nil || longErr != nil || radiusErr != nil || radius <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid radius filter"})
			return
		}
		minLat, maxLat, minLong, maxLong := geo.BoundingBox(lat, long, radius)
		query = query.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			minLat, maxLat, minLong, maxLong)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count login history"})
		return
	}

	var history []models.LoginHistory
	if err := query.Order("login_time desc").Limit(limit).Offset(offset).Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch login history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"history": history,
	})
}
