package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (booked-dates cache, presence registry)
	Redis RedisConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Booking rules
	Booking BookingConfig

	// Hold rate limiting
	RateLimit RateLimitConfig

	// Scheduled maintenance jobs
	Jobs JobsConfig

	// Notification channels
	Notification NotificationConfig

	// SMS configuration
	SMS SMSConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	Driver             string // "postgres" (lib/pq) or "pgx"
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	MigrateOnStart     bool
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL            string
	BookedDatesTTL time.Duration
	PresenceTTL    time.Duration
}

// PaymentConfig holds ZaloPay gateway configuration
type PaymentConfig struct {
	AppID       string
	Key1        string // signs outbound orders
	Key2        string // verifies inbound callbacks (SECRET - never expose to client)
	Endpoint    string
	CallbackURL string
	RedirectURL string
	Timeout     time.Duration
}

// BookingConfig holds reservation rules
type BookingConfig struct {
	HoldTTL        time.Duration // how long an unpaid hotel booking blocks its dates
	AbandonAfter   time.Duration // unpaid bookings older than hold+this are cancelled
	SweepInterval  time.Duration
	PaymentMethods []string
}

// RateLimitConfig bounds how many payment holds one phone number or IP can open
type RateLimitConfig struct {
	Enabled          bool
	MaxPhoneRequests int
	PhoneWindow      time.Duration
	MaxIPRequests    int
	IPWindow         time.Duration
}

// JobsConfig holds the schedules of the payment audit maintenance jobs.
// Schedules use the six-field cron format with seconds.
type JobsConfig struct {
	Enabled            bool
	AuditRetention     time.Duration // zero keeps audits forever
	AuditPurgeSchedule string
	DigestSchedule     string
}

// NotificationConfig selects the outbound notification channels
type NotificationConfig struct {
	Channels    []string // any of: log, sms, sqs
	Timeout     time.Duration
	SQSQueueURL string
	AWSRegion   string
	AWSKey      string
	AWSSecret   string
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	APIURL    string
	APIKey    string
	SecretKey string
	Brandname string
	SMSType   string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Driver:             getEnv("DATABASE_DRIVER", "postgres"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			MigrateOnStart:     getEnvAsBool("MIGRATE_ON_START", false),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", ""),
			BookedDatesTTL: getEnvAsDuration("BOOKED_DATES_CACHE_TTL", 10*time.Minute),
			PresenceTTL:    getEnvAsDuration("PRESENCE_TTL", 2*time.Hour),
		},
		Payment: PaymentConfig{
			AppID:       getEnv("ZALOPAY_APP_ID", ""),
			Key1:        getEnv("ZALOPAY_KEY1", ""),
			Key2:        getEnv("ZALOPAY_KEY2", ""),
			Endpoint:    getEnv("ZALOPAY_ENDPOINT", "https://sb-openapi.zalopay.vn/v2/create"),
			CallbackURL: getEnv("ZALOPAY_CALLBACK_URL", ""),
			RedirectURL: getEnv("ZALOPAY_REDIRECT_URL", "http://localhost:3000/thankyou"),
			Timeout:     getEnvAsDuration("PAYMENT_TIMEOUT", 15*time.Second),
		},
		Booking: BookingConfig{
			HoldTTL:        getEnvAsDuration("BOOKING_HOLD_TTL", 15*time.Minute),
			AbandonAfter:   getEnvAsDuration("BOOKING_ABANDON_AFTER", 24*time.Hour),
			SweepInterval:  getEnvAsDuration("BOOKING_SWEEP_INTERVAL", 5*time.Minute),
			PaymentMethods: getEnvAsSlice("BOOKING_PAYMENT_METHODS", []string{"ZaloPay"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getEnvAsBool("RATE_LIMIT_ENABLED", true),
			MaxPhoneRequests: getEnvAsInt("RATE_LIMIT_PHONE_MAX", 5),
			PhoneWindow:      getEnvAsDuration("RATE_LIMIT_PHONE_WINDOW", 10*time.Minute),
			MaxIPRequests:    getEnvAsInt("RATE_LIMIT_IP_MAX", 20),
			IPWindow:         getEnvAsDuration("RATE_LIMIT_IP_WINDOW", time.Hour),
		},
		Jobs: JobsConfig{
			Enabled:            getEnvAsBool("JOBS_ENABLED", true),
			AuditRetention:     getEnvAsDuration("AUDIT_RETENTION", 180*24*time.Hour),
			AuditPurgeSchedule: getEnv("AUDIT_PURGE_SCHEDULE", "0 0 3 * * *"),
			DigestSchedule:     getEnv("ATTENTION_DIGEST_SCHEDULE", "0 0 7 * * *"),
		},
		Notification: NotificationConfig{
			Channels:    getEnvAsSlice("NOTIFY_CHANNELS", []string{"log"}),
			Timeout:     getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
			SQSQueueURL: getEnv("SQS_QUEUE_URL", ""),
			AWSRegion:   getEnv("AWS_REGION", "ap-southeast-1"),
			AWSKey:      getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecret:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		SMS: SMSConfig{
			APIURL:    getEnv("ESMS_API_URL", "https://rest.esms.vn/MainService.svc/json"),
			APIKey:    getEnv("ESMS_API_KEY", ""),
			SecretKey: getEnv("ESMS_SECRET_KEY", ""),
			Brandname: getEnv("ESMS_BRANDNAME", ""),
			SMSType:   getEnv("ESMS_SMS_TYPE", "2"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres' or 'pgx')", c.Database.Driver)
	}

	if c.Booking.HoldTTL <= 0 {
		return fmt.Errorf("BOOKING_HOLD_TTL must be positive")
	}

	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT must be positive")
	}

	// Gateway credentials are mandatory outside development
	if c.Server.Environment == "production" {
		if c.Payment.AppID == "" || c.Payment.Key1 == "" || c.Payment.Key2 == "" {
			return fmt.Errorf("ZALOPAY_APP_ID, ZALOPAY_KEY1 and ZALOPAY_KEY2 are required in production")
		}
		if c.Payment.CallbackURL == "" {
			return fmt.Errorf("ZALOPAY_CALLBACK_URL is required in production")
		}
	}

	for _, channel := range c.Notification.Channels {
		switch channel {
		case "log":
		case "sqs":
			if c.Notification.SQSQueueURL == "" {
				return fmt.Errorf("SQS_QUEUE_URL is required for the sqs notification channel")
			}
		case "sms":
			if c.SMS.APIKey == "" || c.SMS.SecretKey == "" {
				return fmt.Errorf("ESMS_API_KEY and ESMS_SECRET_KEY are required for the sms notification channel")
			}
		default:
			return fmt.Errorf("invalid notification channel: %s (must be 'log', 'sms' or 'sqs')", channel)
		}
	}

	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("15m") or plain seconds ("900")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
