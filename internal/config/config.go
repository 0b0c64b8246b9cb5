package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables,
// an optional .env file and an optional config.yaml.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	ServerPort      string        `mapstructure:"SERVER_PORT" validate:"required,numeric"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	// Storage selects the persistence backend. "memory" keeps everything in process.
	Storage        string `mapstructure:"STORAGE" validate:"required,oneof=postgres memory"`
	DBDriver       string `mapstructure:"DB_DRIVER" validate:"required,oneof=pgx postgres"`
	DBHost         string `mapstructure:"DB_HOST" validate:"required_if=Storage postgres"`
	DBPort         int    `mapstructure:"DB_PORT" validate:"gte=1,lte=65535"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME" validate:"required_if=Storage postgres"`
	DBSslMode      string `mapstructure:"DB_SSLMODE" validate:"oneof=disable require verify-ca verify-full"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS" validate:"gte=1,lte=500"`

	JWTSecret          string        `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	JWTExpirationHours time.Duration `mapstructure:"-"`
	JWTExpiration      int           `mapstructure:"JWT_EXPIRATION_HOURS" validate:"gte=1,lte=720"`
	QRTokenSecret      string        `mapstructure:"QR_TOKEN_SECRET" validate:"required,min=16"`

	Timezone               string        `mapstructure:"TIMEZONE" validate:"required"`
	BookingGrace           time.Duration `mapstructure:"BOOKING_GRACE" validate:"gte=0"`
	BookingHorizon         time.Duration `mapstructure:"BOOKING_HORIZON" validate:"gt=0"`
	MaxLotCapacity         int           `mapstructure:"MAX_LOT_CAPACITY" validate:"gte=1,lte=10000"`
	RecentBookingRetention time.Duration `mapstructure:"RECENT_BOOKING_RETENTION" validate:"gte=0"`

	NotifyTransport  string `mapstructure:"NOTIFY_TRANSPORT" validate:"required,oneof=none direct sqs rabbitmq"`
	MailerSendAPIKey string `mapstructure:"MAILERSEND_API_KEY" validate:"required_if=NotifyTransport direct"`
	MailFromEmail    string `mapstructure:"MAIL_FROM_EMAIL" validate:"omitempty,email"`
	MailFromName     string `mapstructure:"MAIL_FROM_NAME"`

	AWSRegion         string `mapstructure:"AWS_REGION" validate:"required"`
	SQSNotifyQueueURL string `mapstructure:"SQS_NOTIFY_QUEUE_URL" validate:"required_if=NotifyTransport sqs"`
	RabbitMQURL       string `mapstructure:"RABBITMQ_URL" validate:"required_if=NotifyTransport rabbitmq"`
	RabbitMQExchange  string `mapstructure:"RABBITMQ_EXCHANGE"`
	RabbitMQQueue     string `mapstructure:"RABBITMQ_QUEUE" validate:"required"`

	IoTEndpoint    string `mapstructure:"IOT_ENDPOINT"`
	IoTTopicPrefix string `mapstructure:"IOT_TOPIC_PREFIX" validate:"required"`
	LPREnabled     bool   `mapstructure:"LPR_ENABLED"`

	BookingRateRPS   float64 `mapstructure:"BOOKING_RATE_RPS" validate:"gt=0"`
	BookingRateBurst int     `mapstructure:"BOOKING_RATE_BURST" validate:"gte=1"`

	SeedDemoLots  bool   `mapstructure:"SEED_DEMO_LOTS"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL" validate:"omitempty,email"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD" validate:"required_with=AdminEmail"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	defaultJWTSecret = "change-me-parkease-jwt-secret"
	defaultQRSecret  = "change-me-parkease-qr-secret"
)

var defaults = map[string]any{
	"APP_ENV":                  "development",
	"SERVER_PORT":              "8080",
	"SHUTDOWN_TIMEOUT":         "10s",
	"LOG_LEVEL":                "info",
	"LOG_FORMAT":               "json",
	"STORAGE":                  "postgres",
	"DB_DRIVER":                "pgx",
	"DB_HOST":                  "localhost",
	"DB_PORT":                  5432,
	"DB_USER":                  "parkease",
	"DB_PASSWORD":              "parkease",
	"DB_NAME":                  "parkease",
	"DB_SSLMODE":               "disable",
	"DB_MAX_OPEN_CONNS":        20,
	"JWT_SECRET":               defaultJWTSecret,
	"JWT_EXPIRATION_HOURS":     24,
	"QR_TOKEN_SECRET":          defaultQRSecret,
	"TIMEZONE":                 "Asia/Kolkata",
	"BOOKING_GRACE":            "5m",
	"BOOKING_HORIZON":          "720h",
	"MAX_LOT_CAPACITY":         1000,
	"RECENT_BOOKING_RETENTION": "2160h",
	"NOTIFY_TRANSPORT":         "none",
	"MAILERSEND_API_KEY":       "",
	"MAIL_FROM_EMAIL":          "",
	"MAIL_FROM_NAME":           "ParkEase",
	"AWS_REGION":               "ap-south-1",
	"SQS_NOTIFY_QUEUE_URL":     "",
	"RABBITMQ_URL":             "",
	"RABBITMQ_EXCHANGE":        "parkease",
	"RABBITMQ_QUEUE":           "booking_confirmations",
	"IOT_ENDPOINT":             "",
	"IOT_TOPIC_PREFIX":         "parkease",
	"LPR_ENABLED":              false,
	"BOOKING_RATE_RPS":         2.0,
	"BOOKING_RATE_BURST":       5,
	"SEED_DEMO_LOTS":           false,
	"ADMIN_EMAIL":              "",
	"ADMIN_PASSWORD":           "",
}

// Load reads .env (if present), config.yaml (if present) and the environment,
// applies defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	c.JWTExpirationHours = time.Duration(c.JWTExpiration) * time.Hour

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.AppEnv == "production" {
		if c.JWTSecret == defaultJWTSecret {
			return nil, errors.New("invalid configuration: JWT_SECRET must be set in production")
		}
		if c.QRTokenSecret == defaultQRSecret {
			return nil, errors.New("invalid configuration: QR_TOKEN_SECRET must be set in production")
		}
	}
	return &c, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Location returns the time zone booking dates and times are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN builds a libpq style connection string with every value quoted.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(c.DBHost), c.DBPort, quoteDSN(c.DBUser), quoteDSN(c.DBPassword), quoteDSN(c.DBName), quoteDSN(c.DBSslMode))
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}
