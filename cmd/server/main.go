package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/events"
	"github.com/LVQT-ss/SHOPC-sub000/internal/geo"
	"github.com/LVQT-ss/SHOPC-sub000/internal/handler"
	"github.com/LVQT-ss/SHOPC-sub000/internal/middleware"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/payment"
	"github.com/LVQT-ss/SHOPC-sub000/pkg/database"
)

func main() {
	// 1. Load Configuration
	config.LoadConfig()

	// 2. Connect to Database
	database.Connect()

	// 3. Auto-Migrate Models
	log.Println("Running migrations...")
	err := database.DB.AutoMigrate(
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
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully.")

	// 3a. Seed Data
	database.SeedRolesAndAdmin()

	// 4. Shared infrastructure
	rdb := config.NewRedisClient()
	publisher := events.NewPublisher(config.NewKafkaWriter())
	geocoder := geo.NewGeocoder(config.AppConfig.Geocoder)

	providers := map[string]payment.Provider{
		models.PaymentMethodVNPay:  payment.NewVNPayProvider(config.AppConfig.VNPay),
		models.PaymentMethodVietQR: payment.NewVietQRProvider(config.AppConfig.VietQR),
	}
	// qr_code attempts settle manually, like bank-transfer QR payments.
	providers[models.PaymentMethodQRCode] = providers[models.PaymentMethodVietQR]

	// 5. Initialize Router
	r := gin.Default()

	// CORS Configuration
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Product image static path
	r.Static("/uploads", "./uploads")

	// 6. Setup Routes
	authHandler := &handler.AuthHandler{Geocoder: geocoder}
	authRoutes := r.Group("/api/v1/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	catalogHandler := &handler.CatalogHandler{RDB: rdb}
	r.GET("/api/v1/categories", catalogHandler.ListCategories)
	r.GET("/api/v1/products", catalogHandler.ListProducts)
	r.GET("/api/v1/products/:id", catalogHandler.GetProduct)

	catalogRoutes := r.Group("/api/v1/catalog")
	catalogRoutes.Use(middleware.AuthMiddleware(models.RoleAdmin, models.RoleManager, models.RoleStaff))
	{
		catalogRoutes.POST("/categories", catalogHandler.CreateCategory)
		catalogRoutes.PUT("/categories/:id", catalogHandler.UpdateCategory)
		catalogRoutes.DELETE("/categories/:id", catalogHandler.DeleteCategory)
		catalogRoutes.POST("/products", catalogHandler.CreateProduct)
		catalogRoutes.PUT("/products/:id", catalogHandler.UpdateProduct)
		catalogRoutes.DELETE("/products/:id", catalogHandler.DeleteProduct)
		catalogRoutes.POST("/image", catalogHandler.UploadImage)
	}

	userRoutes := r.Group("/api/v1/user")
	userRoutes.Use(middleware.AuthMiddleware())
	{
		userRoutes.PUT("/password", authHandler.ChangePassword)
		userRoutes.GET("/login-history", authHandler.MyLoginHistory)
	}

	orderHandler := &handler.OrderHandler{RDB: rdb, Events: publisher}
	orderRoutes := r.Group("/api/v1/orders")
	orderRoutes.Use(middleware.AuthMiddleware())
	{
		orderRoutes.POST("", orderHandler.CreateOrder)
		orderRoutes.GET("", orderHandler.ListOrders)
		orderRoutes.GET("/active", orderHandler.ListActiveOrders)
		orderRoutes.GET("/user", orderHandler.MyOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrder)
		orderRoutes.PUT("/:id", orderHandler.UpdateOrder)
		orderRoutes.DELETE("/:id", orderHandler.DeleteOrder)
	}

	transactionHandler := &handler.TransactionHandler{Providers: providers, Events: publisher}
	transactionRoutes := r.Group("/api/v1/transactions")
	transactionRoutes.Use(middleware.AuthMiddleware())
	{
		transactionRoutes.POST("", transactionHandler.CreateTransaction)
		transactionRoutes.POST("/vietqr/:orderID", transactionHandler.GenerateVietQR)
		transactionRoutes.POST("/qr/:orderID", transactionHandler.GenerateQRCode)
		transactionRoutes.POST("/vnpay", transactionHandler.CreateVNPayPayment)
		transactionRoutes.GET("/status", transactionHandler.CheckPaymentStatus)
		transactionRoutes.POST("/cancel/:orderID", transactionHandler.CancelTransaction)
	}
	// The gateway redirects the shopper's browser here; no session token yet.
	r.GET("/api/v1/transactions/vnpay/return", transactionHandler.VNPayReturn)

	adminHandler := &handler.AdminHandler{}
	adminRoutes := r.Group("/api/v1/admin")
	adminRoutes.Use(middleware.AuthMiddleware(models.RoleAdmin))
	{
		adminRoutes.GET("/users", adminHandler.ListUsers)
		adminRoutes.PUT("/users/:id/role", adminHandler.UpdateUserRole)
		adminRoutes.PUT("/users/:id/status", adminHandler.UpdateUserStatus)
		adminRoutes.GET("/dashboard", adminHandler.GetDashboardStats)
	}
	r.GET("/api/v1/admin/login-history",
		middleware.AuthMiddleware(models.RoleAdmin, models.RoleManager),
		authHandler.AllLoginHistory)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 7. Start Server
	port := config.AppConfig.Server.Port
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
