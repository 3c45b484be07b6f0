package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	VNPay    VNPayConfig
	VietQR   VietQRConfig
	Payment  PaymentConfig
	Geocoder GeocoderConfig
	Kafka    KafkaConfig
	Defaults DefaultsConfig
}

type ServerConfig struct {
	Port               string
	Env                string
	JWTSecret          string
	JWTExpirationHours int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	URL      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VNPayConfig holds the merchant credentials shared with the gateway. The
// hash secret signs every outbound parameter set and verifies every callback.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	APIURL     string
	ReturnURL  string
}

// VietQRConfig identifies the fixed receiving bank account embedded in
// generated transfer QR codes.
type VietQRConfig struct {
	BankID      string
	AccountNo   string
	AccountName string
	ImageURL    string
}

type PaymentConfig struct {
	QRGatewayURL string
}

type GeocoderConfig struct {
	BaseURL string
	Timeout time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type DefaultsConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

var AppConfig *Config

func LoadConfig() {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Read .env file
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, checking environment variables: %v", err)
	}

	// Enable reading from OS environment variables as fallback/override
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("JWT_EXPIRATION_HOURS", 24)
	viper.SetDefault("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	viper.SetDefault("VNPAY_API_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction")
	viper.SetDefault("VIETQR_IMAGE_URL", "https://img.vietqr.io/image")
	viper.SetDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org")
	viper.SetDefault("GEOCODER_TIMEOUT_SECONDS", 3)
	viper.SetDefault("KAFKA_TOPIC", "shopc.orders")

	// Explicitly bind environment variables for robustness
	viper.BindEnv("SERVER_PORT", "PORT") // Fallback to PORT if SERVER_PORT is missing
	viper.BindEnv("DATABASE_URL")

	// Manually map configuration to struct
	AppConfig = &Config{
		Server: ServerConfig{
			Port:               viper.GetString("SERVER_PORT"),
			Env:                viper.GetString("SERVER_ENV"),
			JWTSecret:          viper.GetString("JWT_SECRET"),
			JWTExpirationHours: viper.GetInt("JWT_EXPIRATION_HOURS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			URL:      viper.GetString("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		VNPay: VNPayConfig{
			TmnCode:    viper.GetString("VNPAY_TMN_CODE"),
			HashSecret: viper.GetString("VNPAY_HASH_SECRET"),
			PayURL:     viper.GetString("VNPAY_PAY_URL"),
			APIURL:     viper.GetString("VNPAY_API_URL"),
			ReturnURL:  viper.GetString("VNPAY_RETURN_URL"),
		},
		VietQR: VietQRConfig{
			BankID:      viper.GetString("VIETQR_BANK_ID"),
			AccountNo:   viper.GetString("VIETQR_ACCOUNT_NO"),
			AccountName: viper.GetString("VIETQR_ACCOUNT_NAME"),
			ImageURL:    viper.GetString("VIETQR_IMAGE_URL"),
		},
		Payment: PaymentConfig{
			QRGatewayURL: viper.GetString("PAYMENT_QR_GATEWAY_URL"),
		},
		Geocoder: GeocoderConfig{
			BaseURL: viper.GetString("GEOCODER_BASE_URL"),
			Timeout: time.Duration(viper.GetInt("GEOCODER_TIMEOUT_SECONDS")) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetString("KAFKA_BROKERS"),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
		Defaults: DefaultsConfig{
			AdminUsername: viper.GetString("ADMIN_USERNAME"),
			AdminEmail:    viper.GetString("ADMIN_EMAIL"),
			AdminPassword: viper.GetString("ADMIN_PASSWORD"),
		},
	}

	log.Printf("Configuration loaded successfully:")
	log.Printf("- Server Port: %s", AppConfig.Server.Port)
	log.Printf("- Server Env: %s", AppConfig.Server.Env)
	log.Printf("- JWT Secret: %s", setOrNot(AppConfig.Server.JWTSecret))
	log.Printf("- Database Host: %s", AppConfig.Database.Host)
	log.Printf("- Database Name: %s", AppConfig.Database.Name)
	log.Printf("- Database URL: %s", setOrNot(AppConfig.Database.URL))
	log.Printf("- Redis Addr: %s", AppConfig.Redis.Addr)
	log.Printf("- VNPay TmnCode: %s", AppConfig.VNPay.TmnCode)
	log.Printf("- VNPay Hash Secret: %s", setOrNot(AppConfig.VNPay.HashSecret))
	log.Printf("- Kafka Brokers: %s", AppConfig.Kafka.Brokers)
}

func setOrNot(v string) string {
	if v != "" {
		return "SET"
	}
	return "NOT SET"
}
