package config

import (
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Checkout  CheckoutConfig
	Inventory InventoryConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	Printers  PrintersConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type AuthConfig struct {
	// AllowLegacyPlaintext accepts pre-bcrypt password values imported from
	// the old register database. New credentials are always bcrypt.
	AllowLegacyPlaintext bool
}

type CheckoutConfig struct {
	PaymentTolerance    decimal.Decimal
	AllowEmptyFinalize  bool
	DefaultLocationName string
}

type InventoryConfig struct {
	AllowNegative bool
}

type RateLimitConfig struct {
	LoginRequests int
	LoginWindow   time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

type PrintersConfig struct {
	ProfilePath string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("JWT_REFRESH_EXPIRY", 7)
	v.SetDefault("AUTH_ALLOW_LEGACY_PLAINTEXT", true)
	v.SetDefault("CHECKOUT_PAYMENT_TOLERANCE", "0.01")
	v.SetDefault("CHECKOUT_ALLOW_EMPTY_FINALIZE", false)
	v.SetDefault("CHECKOUT_DEFAULT_LOCATION", "Main Store")
	v.SetDefault("INVENTORY_ALLOW_NEGATIVE", true)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW_SECONDS", 60)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "pos")
	v.SetDefault("OUTBOX_INTERVAL_MS", 1000)
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("PRINTER_PROFILE_PATH", "app_settings.json")
}

func fromViper(v *viper.Viper) *Config {
	tolerance, err := decimal.NewFromString(v.GetString("CHECKOUT_PAYMENT_TOLERANCE"))
	if err != nil || !tolerance.IsPositive() {
		log.Printf("Warning: invalid CHECKOUT_PAYMENT_TOLERANCE %q, using 0.01", v.GetString("CHECKOUT_PAYMENT_TOLERANCE"))
		tolerance = decimal.New(1, -2)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  v.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: v.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Auth: AuthConfig{
			AllowLegacyPlaintext: v.GetBool("AUTH_ALLOW_LEGACY_PLAINTEXT"),
		},
		Checkout: CheckoutConfig{
			PaymentTolerance:    tolerance,
			AllowEmptyFinalize:  v.GetBool("CHECKOUT_ALLOW_EMPTY_FINALIZE"),
			DefaultLocationName: v.GetString("CHECKOUT_DEFAULT_LOCATION"),
		},
		Inventory: InventoryConfig{
			AllowNegative: v.GetBool("INVENTORY_ALLOW_NEGATIVE"),
		},
		RateLimit: RateLimitConfig{
			LoginRequests: v.GetInt("LOGIN_RATE_LIMIT"),
			LoginWindow:   time.Duration(v.GetInt("LOGIN_RATE_WINDOW_SECONDS")) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			TopicPrefix: v.GetString("KAFKA_TOPIC_PREFIX"),
		},
		Outbox: OutboxConfig{
			Interval:  time.Duration(v.GetInt("OUTBOX_INTERVAL_MS")) * time.Millisecond,
			BatchSize: v.GetInt("OUTBOX_BATCH_SIZE"),
		},
		Printers: PrintersConfig{
			ProfilePath: v.GetString("PRINTER_PROFILE_PATH"),
		},
	}
}

// DSN builds the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database +
		"?sslmode=" + c.SSLMode + "&search_path=" + c.Schema
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
