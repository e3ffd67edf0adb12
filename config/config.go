package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	AuthConfig     AuthConfig     `json:"auth"`
	AccessConfig   AccessConfig   `json:"access"`
	WebhookConfig  WebhookConfig  `json:"webhook"`
	VaultConfig    VaultConfig    `json:"vault"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	SweepConfig    SweepConfig    `json:"sweep"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for the system-flag and plan caches
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// AuthConfig holds credential and session configuration
type AuthConfig struct {
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	SessionDuration     time.Duration `json:"session_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
	CheckpointSecret    string        `json:"checkpoint_secret"`
}

// AccessConfig holds the gateway's tier derivation knobs. The grace window
// and the read-only feature caps are deployment configuration, not plan
// attributes.
type AccessConfig struct {
	SubscriptionEnabled bool          `json:"subscription_enabled"` // System-wide kill switch
	MaintenanceMode     bool          `json:"maintenance_mode"`
	GracePeriodDays     int           `json:"grace_period_days"`
	TrialDays           int           `json:"trial_days"`
	VolatileFlagTTL     time.Duration `json:"volatile_flag_ttl"`
	StableFlagTTL       time.Duration `json:"stable_flag_ttl"`

	// Read-only tier visibility caps, consumed by the UI collaborator.
	ReadOnlyTimetableDays  int `json:"read_only_timetable_days"`
	ReadOnlyNotes          int `json:"read_only_notes"`
	ReadOnlyFocusSessions  int `json:"read_only_focus_sessions"`
	ReadOnlyPrivateLessons int `json:"read_only_private_lessons"`
}

// WebhookConfig holds payment-callback verification configuration
type WebhookConfig struct {
	ProviderSecret string `json:"provider_secret"` // Provider-native payload HMAC
	InternalSecret string `json:"internal_secret"` // Internal/mock header HMAC
}

// VaultConfig holds HashiCorp Vault configuration for signing secrets
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// SweepConfig holds expiry sweep scheduler configuration
type SweepConfig struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Signing secrets may also come from Vault, which wins over both sources.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", "false") == "true"
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "studyhall")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "studyhall")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Auth config
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.SessionDuration = getEnvDurationOrDefault("AUTH_SESSION_DURATION", 7*24*time.Hour)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)
	cfg.AuthConfig.CheckpointSecret = getEnvOrDefault("CHECKPOINT_SECRET", cfg.AuthConfig.CheckpointSecret)

	// Access config
	cfg.AccessConfig.SubscriptionEnabled = getEnvOrDefault("SUBSCRIPTION_ENABLED", "true") == "true"
	cfg.AccessConfig.MaintenanceMode = getEnvOrDefault("MAINTENANCE_MODE", "false") == "true"
	cfg.AccessConfig.GracePeriodDays = getEnvIntOrDefault("ACCESS_GRACE_PERIOD_DAYS", 3)
	cfg.AccessConfig.TrialDays = getEnvIntOrDefault("ACCESS_TRIAL_DAYS", 14)
	cfg.AccessConfig.VolatileFlagTTL = getEnvDurationOrDefault("CHECKPOINT_VOLATILE_TTL", 24*time.Hour)
	cfg.AccessConfig.StableFlagTTL = getEnvDurationOrDefault("CHECKPOINT_STABLE_TTL", 365*24*time.Hour)
	cfg.AccessConfig.ReadOnlyTimetableDays = getEnvIntOrDefault("READONLY_TIMETABLE_DAYS", 7)
	cfg.AccessConfig.ReadOnlyNotes = getEnvIntOrDefault("READONLY_NOTES", 10)
	cfg.AccessConfig.ReadOnlyFocusSessions = getEnvIntOrDefault("READONLY_FOCUS_SESSIONS", 10)
	cfg.AccessConfig.ReadOnlyPrivateLessons = getEnvIntOrDefault("READONLY_PRIVATE_LESSONS", 5)

	// Webhook config
	cfg.WebhookConfig.ProviderSecret = getEnvOrDefault("WEBHOOK_PROVIDER_SECRET", cfg.WebhookConfig.ProviderSecret)
	cfg.WebhookConfig.InternalSecret = getEnvOrDefault("WEBHOOK_INTERNAL_SECRET", cfg.WebhookConfig.InternalSecret)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "studyhall/signing")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Sweep config
	cfg.SweepConfig.Enabled = getEnvOrDefault("SWEEP_ENABLED", "true") == "true"
	cfg.SweepConfig.Interval = getEnvDurationOrDefault("SWEEP_INTERVAL", 1*time.Hour)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
