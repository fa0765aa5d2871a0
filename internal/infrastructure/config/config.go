// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string
	// DisplayTimezone is the IANA zone planned times are entered in
	DisplayTimezone string

	// Server
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MongoDB (loads)
	MongoURI        string
	MongoDB         string
	MongoUser       string
	MongoPassword   string
	LoadsCollection string

	// PostgreSQL (custom locations); empty disables the lookup
	PostgresURI string

	// Depot reference data
	DepotsFile string

	// Telemetry provider
	TelemetryBaseURL        string
	TelemetryTokenURL       string
	TelemetryClientID       string
	TelemetryClientSecret   string
	TelemetryUsername       string
	TelemetryPassword       string
	TelemetryScopes         []string
	TelemetryOrganisationID string
	TelemetryTimeout        time.Duration

	// Tracking
	PollInterval         time.Duration
	DwellThreshold       time.Duration
	StationarySpeedKmH   float64
	DepartureSpeedKmH    float64
	GPSGapGrace          time.Duration
	GPSGapTimeout        time.Duration
	StaleAfter           time.Duration
	ETAFloorSpeedKmH     float64
	WorkerConcurrency    int
	TrackingWriteTimeout time.Duration

	// RabbitMQ; empty disables milestone events
	AMQPURL      string
	AMQPExchange string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppVersion:      getEnv("APP_VERSION", "1.0.0"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Local"),
		Port:            getEnv("PORT", "8080"),
		ReadTimeout:     time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout:    time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MongoURI:        getEnv("MONGODB_DSN", ""),
		MongoDB:         getEnv("MONGO_DB", "fleet"),
		MongoUser:       getEnv("MONGO_USER", ""),
		MongoPassword:   getEnv("MONGO_PASSWORD", ""),
		LoadsCollection: getEnv("MONGO_LOADS_COLLECTION", "loads"),

		PostgresURI: getEnv("POSTGRES_URI", ""),
		DepotsFile:  getEnv("DEPOTS_FILE", "depots.yml"),

		TelemetryBaseURL:        strings.TrimRight(getEnv("TELEMETRY_BASE_URL", ""), "/"),
		TelemetryTokenURL:       getEnv("TELEMETRY_TOKEN_URL", ""),
		TelemetryClientID:       getEnv("TELEMETRY_CLIENT_ID", ""),
		TelemetryClientSecret:   getEnv("TELEMETRY_CLIENT_SECRET", ""),
		TelemetryUsername:       getEnv("TELEMETRY_USERNAME", ""),
		TelemetryPassword:       getEnv("TELEMETRY_PASSWORD", ""),
		TelemetryScopes:         splitCSV(getEnv("TELEMETRY_SCOPES", "offline_access")),
		TelemetryOrganisationID: getEnv("TELEMETRY_ORGANISATION_ID", ""),
		TelemetryTimeout:        getEnvAsDuration("TELEMETRY_TIMEOUT", 20*time.Second),

		PollInterval:         getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		DwellThreshold:       getEnvAsDuration("DWELL_THRESHOLD", 5*time.Minute),
		StationarySpeedKmH:   getEnvAsFloat("STATIONARY_SPEED_KMH", 5),
		DepartureSpeedKmH:    getEnvAsFloat("DEPARTURE_SPEED_KMH", 15),
		GPSGapGrace:          getEnvAsDuration("GPS_GAP_GRACE", 2*time.Minute),
		GPSGapTimeout:        getEnvAsDuration("GPS_GAP_TIMEOUT", 10*time.Minute),
		StaleAfter:           getEnvAsDuration("STALE_AFTER", 30*time.Minute),
		ETAFloorSpeedKmH:     getEnvAsFloat("ETA_FLOOR_SPEED_KMH", 60),
		WorkerConcurrency:    getEnvAsInt("WORKER_CONCURRENCY", 8),
		TrackingWriteTimeout: getEnvAsDuration("TRACKING_WRITE_TIMEOUT", 10*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fleet.milestones"),
	}

	var missing []string
	if config.MongoURI == "" {
		missing = append(missing, "MONGODB_DSN")
	}
	if config.TelemetryBaseURL == "" {
		missing = append(missing, "TELEMETRY_BASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	// a regular tick must never count as a gap
	if config.GPSGapGrace < config.PollInterval {
		config.GPSGapGrace = config.PollInterval
	}
	if config.GPSGapTimeout < config.GPSGapGrace {
		config.GPSGapTimeout = config.GPSGapGrace
	}
	if config.WorkerConcurrency < 1 {
		config.WorkerConcurrency = 1
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
