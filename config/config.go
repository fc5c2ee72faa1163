package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Auth providers accepted by AUTH_PROVIDER
const (
	AuthProviderLocal = "local"
	AuthProviderAuth0 = "auth0"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string
	Port               string
	GoEnv              string
	LogLevel           string
	AuthProvider       string
	JWTSecret          string
	Auth0Domain        string
	Auth0Audience      string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	StripeSecretKey    string
	PaymentCurrency    string
	ResendAPIKey       string
	MailFrom           string
	RedisAddr          string
	RedisPassword      string
	CORSOrigins        []string
	AppURL             string

	// EnforceStatusTransitions rejects job status writes that skip the lifecycle table.
	// Off by default: any status may be written through an update.
	EnforceStatusTransitions bool
	NotifyWorkers            int
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			// so it's okay if .env files don't exist
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		Port:                     getEnv("PORT", "8080"),
		GoEnv:                    getEnv("GO_ENV", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		AuthProvider:             strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderLocal)),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		Auth0Domain:              getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:            getEnv("AUTH0_AUDIENCE", ""),
		AWSRegion:                getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:              getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:           getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:       getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StripeSecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
		PaymentCurrency:          strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		ResendAPIKey:             getEnv("RESEND_API_KEY", ""),
		MailFrom:                 getEnv("MAIL_FROM", "ServicePro <noreply@servicepro.app>"),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		CORSOrigins:              splitList(getEnv("CORS_ORIGINS", "")),
		AppURL:                   strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		EnforceStatusTransitions: getEnvBool("ENFORCE_STATUS_TRANSITIONS", false),
		NotifyWorkers:            getEnvInt("NOTIFY_WORKERS", 4),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.AuthProvider {
	case AuthProviderLocal:
		if c.JWTSecret == "" && c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	case AuthProviderAuth0:
		if c.Auth0Domain == "" || c.Auth0Audience == "" {
			return fmt.Errorf("AUTH0_DOMAIN and AUTH0_AUDIENCE are required when AUTH_PROVIDER=auth0")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.NotifyWorkers <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// SigningSecret returns the secret for locally issued session tokens.
// Outside production an unset secret falls back to a fixed development value.
func (c *Config) SigningSecret() string {
	if c.JWTSecret == "" {
		return "servicepro-dev-secret"
	}
	return c.JWTSecret
}

// GetConfig returns the configuration loaded by the last successful Load call
func GetConfig() *Config {
	return appConfig
}

// SetConfig replaces the loaded configuration (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// splitList parses a comma-separated list, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
