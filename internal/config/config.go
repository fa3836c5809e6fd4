package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendMongoDB  = "mongodb"
)

// Config representa la configuración del servicio de reportes
type Config struct {
	// Server
	ServerPort string
	GinMode    string
	LogLevel   string

	// Store
	StoreBackend string

	// AWS
	AWSRegion                  string
	AWSAccessKeyID             string
	AWSSecretKey               string
	DynamoDBEndpoint           string
	DynamoDBTableReports       string
	DynamoDBTablePendingReport string
	DynamoDBTableUsers         string
	DynamoDBTableAccounts      string

	// MongoDB
	MongoURI string
	MongoDB  string

	// Kafka
	KafkaEnabled            bool
	KafkaBootstrapServers   string
	KafkaNotificationsTopic string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int

	// Observabilidad
	EnableMetrics bool

	// Borradores y sesiones
	DraftRetentionDays   int
	DraftCleanupInterval time.Duration
	AutosaveDelay        time.Duration
	FormSessionTTL       time.Duration
	AuthSessionTTL       time.Duration
	LocalCacheTTL        time.Duration

	// Geo
	GeoTablePath string

	// Administrador inicial
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	BootstrapAdminEmail    string
}

// LoadConfig carga la configuración desde variables de entorno
func LoadConfig() (*Config, error) {
	// .env solo existe en desarrollo
	_ = godotenv.Load()

	config := &Config{
		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
		GinMode:    getEnvOrDefault("GIN_MODE", "debug"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendMemory)),

		AWSRegion:                  getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:             os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:               os.Getenv("AWS_SECRET_ACCESS_KEY"),
		DynamoDBEndpoint:           os.Getenv("DYNAMODB_ENDPOINT"),
		DynamoDBTableReports:       getEnvOrDefault("DYNAMODB_TABLE_REPORTS", "mopc_reports"),
		DynamoDBTablePendingReport: getEnvOrDefault("DYNAMODB_TABLE_PENDING_REPORTS", "mopc_pending_reports"),
		DynamoDBTableUsers:         getEnvOrDefault("DYNAMODB_TABLE_USERS", "mopc_users"),
		DynamoDBTableAccounts:      getEnvOrDefault("DYNAMODB_TABLE_ACCOUNTS", "mopc_accounts"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnvOrDefault("MONGO_DB", "mopc"),

		KafkaEnabled:            getEnvAsBool("KAFKA_ENABLED", false),
		KafkaBootstrapServers:   getEnvOrDefault("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
		KafkaNotificationsTopic: getEnvOrDefault("KAFKA_NOTIFICATIONS_TOPIC", "event.mopc.notificaciones"),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),

		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),

		DraftRetentionDays:   getEnvAsInt("DRAFT_RETENTION_DAYS", 30),
		DraftCleanupInterval: getEnvAsDuration("DRAFT_CLEANUP_INTERVAL", time.Hour),
		AutosaveDelay:        getEnvAsDuration("AUTOSAVE_DELAY", time.Second),
		FormSessionTTL:       getEnvAsDuration("FORM_SESSION_TTL", 30*time.Minute),
		AuthSessionTTL:       getEnvAsDuration("AUTH_SESSION_TTL", 12*time.Hour),
		LocalCacheTTL:        getEnvAsDuration("LOCAL_CACHE_TTL", 24*time.Hour),

		GeoTablePath: os.Getenv("GEO_TABLE_PATH"),

		BootstrapAdminUsername: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuración inválida: %w", err)
	}

	return config, nil
}

// RequestsPerSecond converts the configured window into a limiter rate.
func (c *Config) RequestsPerSecond() float64 {
	if c.RateLimitWindow <= 0 {
		return float64(c.RateLimitRequests)
	}
	return float64(c.RateLimitRequests) / float64(c.RateLimitWindow)
}

func validateConfig(config *Config) error {
	switch config.StoreBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if config.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION es requerido con STORE_BACKEND=dynamodb")
		}
	case BackendMongoDB:
		if config.MongoURI == "" {
			return fmt.Errorf("MONGO_URI es requerido con STORE_BACKEND=mongodb")
		}
	default:
		return fmt.Errorf("STORE_BACKEND desconocido: %q", config.StoreBackend)
	}

	if config.KafkaEnabled && config.KafkaBootstrapServers == "" {
		return fmt.Errorf("KAFKA_BOOTSTRAP_SERVERS es requerido con KAFKA_ENABLED")
	}

	if config.DraftRetentionDays < 1 {
		return fmt.Errorf("DRAFT_RETENTION_DAYS debe ser al menos 1")
	}

	durations := map[string]time.Duration{
		"DRAFT_CLEANUP_INTERVAL": config.DraftCleanupInterval,
		"AUTOSAVE_DELAY":         config.AutosaveDelay,
		"FORM_SESSION_TTL":       config.FormSessionTTL,
		"AUTH_SESSION_TTL":       config.AuthSessionTTL,
		"LOCAL_CACHE_TTL":        config.LocalCacheTTL,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s debe ser positivo", key)
		}
	}

	if (config.BootstrapAdminUsername == "") != (config.BootstrapAdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME y BOOTSTRAP_ADMIN_PASSWORD van juntos")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
