package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/utils"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestDB points the package-level database handle at a fresh in-memory
// database, migrated and seeded with the four roles. Capped at one connection
// so every query sees the same memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.LoginHistory{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderDetail{},
		&models.Transaction{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	for _, name := range []string{models.RoleAdmin, models.RoleManager, models.RoleStaff, models.RoleCustomer} {
		if err := db.Create(&models.Role{Name: name}).Error; err != nil {
			t.Fatalf("failed to seed role %s: %v", name, err)
		}
	}

	database.DB = db

	config.AppConfig = &config.Config{
		Server: config.ServerConfig{
			JWTSecret:          "handler-test-secret",
			JWTExpirationHours: 1,
		},
		Payment: config.PaymentConfig{
			QRGatewayURL: "https://pay.example.com",
		},
	}

	return db
}

const testPassword = "password123"

func createTestUser(t *testing.T, db *gorm.DB, username, roleName string) *models.User {
	t.Helper()

	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		t.Fatalf("role %s not seeded: %v", roleName, err)
	}

	hash, err := utils.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		RoleID:       role.ID,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	user.Role = role
	return &user
}

func createTestProduct(t *testing.T, db *gorm.DB, name, price, status string) *models.Product {
	t.Helper()

	product := models.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Status: status,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("failed to create product %s: %v", name, err)
	}
	return &product
}

func createTestOrder(t *testing.T, db *gorm.DB, userID uint, status, total string) *models.Order {
	t.Helper()

	order := models.Order{
		OrderNumber: time.Now().UnixMilli(),
		OrderDate:   time.Now(),
		Total:       decimal.RequireFromString(total),
		Status:      status,
		UserID:      userID,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return &order
}

// identity installs the claims an authenticated request would carry, without
// going through token validation.
func identity(userID uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("role", role)
	}
}

func performRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}
