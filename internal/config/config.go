// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"metawallet/internal/service"
	"metawallet/pkg/db"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config

	// AdminAccountID identifies the platform account whose wallet accrues
	// all top-up fees. Injected rather than hardcoded so deployments and
	// tests choose their own admin account.
	AdminAccountID string
	// FeeRate is the fraction of each top-up credited to the admin wallet.
	FeeRate decimal.Decimal

	// RedisAddr enables the wallet read cache when non-empty.
	RedisAddr string
	RedisPass string
	RedisDB   int
}

// LoadConfig loads configuration from the environment, reading a .env file
// first when present. It returns an AppConfig instance or an error if any
// variable is invalid.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		dbPortStr = "5432"
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		dbPassword = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "metawallet"
	}
	dbSSLMode := os.Getenv("DB_SSLMODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	// Empty until provisioning; the API server refuses to start without it,
	// but cmd/seed runs first to create the admin account.
	adminAccountID := os.Getenv("ADMIN_ACCOUNT_ID")

	feeRateStr := os.Getenv("TOPUP_FEE_RATE")
	feeRate := service.DefaultFeeRate
	if feeRateStr != "" {
		feeRate, err = decimal.NewFromString(feeRateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TOPUP_FEE_RATE: %w", err)
		}
		if feeRate.IsNegative() || feeRate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("TOPUP_FEE_RATE must be within [0, 1], got %s", feeRate)
		}
	}

	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		redisDB, err = strconv.Atoi(redisDBStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}

	return &AppConfig{
		ServerPort: serverPort,
		DB: db.Config{
			Host:     dbHost,
			Port:     dbPort,
			User:     dbUser,
			Password: dbPassword,
			DBName:   dbName,
			SSLMode:  dbSSLMode,
		},
		AdminAccountID: adminAccountID,
		FeeRate:        feeRate,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		RedisDB:        redisDB,
	}, nil
}
