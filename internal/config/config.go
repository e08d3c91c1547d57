package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	HTTP_PORT     string `env:"HTTP_PORT"`
	DB_STRING     string `env:"DB_STRING"`
	KAFKA_BROKERS string `env:"KAFKA_BROKERS"`
	KAFKA_TOPIC   string `env:"KAFKA_TOPIC"`
	KAFKA_GROUP   string `env:"KAFKA_GROUP"`

	// Payment gateway credentials and endpoints.
	GATEWAY_PARTNER_CODE string `env:"GATEWAY_PARTNER_CODE"`
	GATEWAY_ACCESS_KEY   string `env:"GATEWAY_ACCESS_KEY"`
	GATEWAY_SECRET_KEY   string `env:"GATEWAY_SECRET_KEY"`
	GATEWAY_CREATE_URL   string `env:"GATEWAY_CREATE_URL"`
	GATEWAY_REDIRECT_URL string `env:"GATEWAY_REDIRECT_URL"`
	GATEWAY_IPN_URL      string `env:"GATEWAY_IPN_URL"`

	GatewayTimeout time.Duration
	ShippingFee    int64
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:            os.Getenv("HTTP_PORT"),
		DB_STRING:            os.Getenv("DB_STRING"),
		KAFKA_BROKERS:        os.Getenv("KAFKA_BROKERS"),
		KAFKA_TOPIC:          os.Getenv("KAFKA_TOPIC"),
		KAFKA_GROUP:          os.Getenv("KAFKA_GROUP"),
		GATEWAY_PARTNER_CODE: os.Getenv("GATEWAY_PARTNER_CODE"),
		GATEWAY_ACCESS_KEY:   os.Getenv("GATEWAY_ACCESS_KEY"),
		GATEWAY_SECRET_KEY:   os.Getenv("GATEWAY_SECRET_KEY"),
		GATEWAY_CREATE_URL:   os.Getenv("GATEWAY_CREATE_URL"),
		GATEWAY_REDIRECT_URL: os.Getenv("GATEWAY_REDIRECT_URL"),
		GATEWAY_IPN_URL:      os.Getenv("GATEWAY_IPN_URL"),
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}
	if cfg.KAFKA_TOPIC == "" {
		cfg.KAFKA_TOPIC = "order-events"
	}
	if cfg.KAFKA_GROUP == "" {
		cfg.KAFKA_GROUP = "notifications"
	}

	cfg.GatewayTimeout = 10 * time.Second
	if v := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GatewayTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.ShippingFee = 10000
	if v := os.Getenv("SHIPPING_FEE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.ShippingFee = n
		}
	}

	return cfg, nil
}
