package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LVQT-ss/SHOPC-sub000/config"
)

var DB *gorm.DB

func Connect() {
	var dsn string

	// Prioritize DATABASE_URL if provided (common on hosted MySQL)
	if config.AppConfig.Database.URL != "" {
		log.Println("Using DATABASE_URL for connection")
		dsn = urlToDSN(config.AppConfig.Database.URL)
	} else {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			config.AppConfig.Database.User,
			config.AppConfig.Database.Password,
			config.AppConfig.Database.Host,
			config.AppConfig.Database.Port,
			config.AppConfig.Database.Name,
		)
	}

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Connection pooling configuration
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established successfully")
}

// urlToDSN converts a mysql:// style URL to the driver DSN format:
// user:pass@tcp(host:port)/dbname?params
func urlToDSN(raw string) string {
	dsn := raw
	if !strings.HasPrefix(dsn, "mysql://") && !strings.HasPrefix(dsn, "mariadb://") {
		return dsn
	}

	dsn = strings.TrimPrefix(dsn, "mysql://")
	dsn = strings.TrimPrefix(dsn, "mariadb://")

	parts := strings.SplitN(dsn, "@", 2)
	if len(parts) != 2 {
		return dsn
	}
	creds := parts[0]

	hostParts := strings.SplitN(parts[1], "/", 2)
	if len(hostParts) != 2 {
		return dsn
	}
	hostPort := hostParts[0]
	dbName := hostParts[1]

	params := "?charset=utf8mb4&parseTime=True&loc=Local"
	if strings.Contains(dbName, "?") {
		dbParts := strings.SplitN(dbName, "?", 2)
		dbName = dbParts[0]
		params = "?" + dbParts[1]
	}

	return fmt.Sprintf("%s@tcp(%s)/%s%s", creds, hostPort, dbName, params)
}
