package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Checkout.PaymentTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.False(t, cfg.Checkout.AllowEmptyFinalize)
	assert.Equal(t, "Main Store", cfg.Checkout.DefaultLocationName)
	assert.True(t, cfg.Inventory.AllowNegative)
	assert.True(t, cfg.Auth.AllowLegacyPlaintext)
	assert.Equal(t, time.Second, cfg.Outbox.Interval)
	assert.Equal(t, time.Minute, cfg.RateLimit.LoginWindow)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "app_settings.json", cfg.Printers.ProfilePath)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CHECKOUT_PAYMENT_TOLERANCE", "0.05")
	v.Set("INVENTORY_ALLOW_NEGATIVE", false)
	v.Set("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	v.Set("CORS_ALLOWED_ORIGINS", "http://till-1.local,http://till-2.local")

	cfg := fromViper(v)

	assert.True(t, cfg.Checkout.PaymentTolerance.Equal(decimal.RequireFromString("0.05")))
	assert.False(t, cfg.Inventory.AllowNegative)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
}

func TestFromViper_InvalidToleranceFallsBack(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-0.01"} {
		v := viper.New()
		setDefaults(v)
		v.Set("CHECKOUT_PAYMENT_TOLERANCE", raw)

		cfg := fromViper(v)
		assert.True(t, cfg.Checkout.PaymentTolerance.Equal(decimal.RequireFromString("0.01")), raw)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "pos", Password: "secret", Database: "pos", Schema: "public", SSLMode: "disable"}
	assert.Equal(t, "postgres://pos:secret@db:5432/pos?sslmode=disable&search_path=public", c.DSN())
}
