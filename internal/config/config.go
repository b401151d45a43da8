package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Server configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
	Mode string `toml:"mode"` // gin mode: debug, release, test
}

// MongoDB configuration
type MongoConfig struct {
	URI               string `toml:"uri"`
	Database          string `toml:"database"`
	ConnectTimeoutSec int    `toml:"connect_timeout_sec"`
}

// Identity provider configuration
type IdentityConfig struct {
	Provider string `toml:"provider"` // firebase or local

	FirebaseProjectID       string `toml:"firebase_project_id"`
	FirebaseClientEmail     string `toml:"firebase_client_email"`
	FirebasePrivateKey      string `toml:"firebase_private_key"`
	FirebaseCredentialsFile string `toml:"firebase_credentials_file"`

	LocalSecret      string `toml:"local_secret"`
	LocalIssuer      string `toml:"local_issuer"`
	LocalTokenTTLMin int    `toml:"local_token_ttl_min"`
}

// Seed admin configuration. The record is created with a synthetic uid and is
// relinked to the real provider uid on the first login with the same email.
type SeedAdminConfig struct {
	UID         string `toml:"uid"`
	Email       string `toml:"email"`
	DisplayName string `toml:"display_name"`
}

// Rate limit configuration
type RateLimitConfig struct {
	Enabled   bool `toml:"enabled"`
	PerMinute int  `toml:"per_minute"`
	Burst     int  `toml:"burst"`
}

// Log configuration
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

// Task configuration
type TaskConfig struct {
	DefaultDueDays int   `toml:"default_due_days"`
	ListLimit      int64 `toml:"list_limit"`
}

// Metrics configuration
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config holds all application configuration
type Config struct {
	Server      ServerConfig    `toml:"server"`
	Mongo       MongoConfig     `toml:"mongo"`
	Identity    IdentityConfig  `toml:"identity"`
	SeedAdmin   SeedAdminConfig `toml:"seed_admin"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Log         LogConfig       `toml:"log"`
	Tasks       TaskConfig      `toml:"tasks"`
	Metrics     MetricsConfig   `toml:"metrics"`
	CORSOrigins []string        `toml:"cors_origins"`
}

// MemoryStoreURI as the Mongo URI keeps users and tasks in process memory.
const MemoryStoreURI = "memory://"

// Identity providers
const (
	ProviderFirebase = "firebase"
	ProviderLocal    = "local"
)

// Default configuration values
const (
	DefaultServerPort          = "5000"
	DefaultServerHost          = ""
	DefaultServerMode          = "release"
	DefaultMongoURI            = "mongodb://localhost:27017/task-manager"
	DefaultMongoDB             = "task-manager"
	DefaultMongoConnectTimeout = 10
	DefaultIdentityProvider    = ProviderFirebase
	DefaultLocalIssuer         = "taskmanager-local"
	DefaultLocalTokenTTLMin    = 60
	DefaultSeedAdminUID        = "admin-seed"
	DefaultSeedAdminName       = "Admin"
	DefaultRateLimitEnabled    = true
	DefaultRateLimitPerMinute  = 120
	DefaultRateLimitBurst      = 60
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultTaskDueDays         = 7
	DefaultTaskListLimit       = 100
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultCORSOrigins         = "http://localhost:3000"
)

// Default returns the built-in defaults without consulting the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: DefaultServerPort,
			Host: DefaultServerHost,
			Mode: DefaultServerMode,
		},
		Mongo: MongoConfig{
			URI:               DefaultMongoURI,
			Database:          DefaultMongoDB,
			ConnectTimeoutSec: DefaultMongoConnectTimeout,
		},
		Identity: IdentityConfig{
			Provider:         DefaultIdentityProvider,
			LocalIssuer:      DefaultLocalIssuer,
			LocalTokenTTLMin: DefaultLocalTokenTTLMin,
		},
		SeedAdmin: SeedAdminConfig{
			UID:         DefaultSeedAdminUID,
			DisplayName: DefaultSeedAdminName,
		},
		RateLimit: RateLimitConfig{
			Enabled:   DefaultRateLimitEnabled,
			PerMinute: DefaultRateLimitPerMinute,
			Burst:     DefaultRateLimitBurst,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tasks: TaskConfig{
			DefaultDueDays: DefaultTaskDueDays,
			ListLimit:      DefaultTaskListLimit,
		},
		Metrics: MetricsConfig{
			Enabled: DefaultMetricsEnabled,
			Path:    DefaultMetricsPath,
		},
		CORSOrigins: splitList(DefaultCORSOrigins),
	}
}

// New returns defaults overridden by environment variables
func New() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load builds the configuration in three layers: defaults, the optional TOML
// file at path, then environment variables. A .env file in the working
// directory is loaded into the environment first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", getEnv("SERVER_PORT", c.Server.Port))
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Mode = getEnv("GIN_MODE", c.Server.Mode)

	c.Mongo.URI = getEnv("MONGODB_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGODB_DB", c.Mongo.Database)
	c.Mongo.ConnectTimeoutSec = getEnvInt("MONGODB_CONNECT_TIMEOUT_SEC", c.Mongo.ConnectTimeoutSec)

	c.Identity.Provider = strings.ToLower(getEnv("IDENTITY_PROVIDER", c.Identity.Provider))
	c.Identity.FirebaseProjectID = getEnv("FIREBASE_PROJECT_ID", c.Identity.FirebaseProjectID)
	c.Identity.FirebaseClientEmail = getEnv("FIREBASE_CLIENT_EMAIL", c.Identity.FirebaseClientEmail)
	// Keys pasted into env files usually carry escaped newlines.
	c.Identity.FirebasePrivateKey = strings.ReplaceAll(getEnv("FIREBASE_PRIVATE_KEY", c.Identity.FirebasePrivateKey), `\n`, "\n")
	c.Identity.FirebaseCredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", c.Identity.FirebaseCredentialsFile)
	c.Identity.LocalSecret = getEnv("LOCAL_IDENTITY_SECRET", c.Identity.LocalSecret)
	c.Identity.LocalIssuer = getEnv("LOCAL_IDENTITY_ISSUER", c.Identity.LocalIssuer)
	c.Identity.LocalTokenTTLMin = getEnvInt("LOCAL_IDENTITY_TTL_MIN", c.Identity.LocalTokenTTLMin)

	c.SeedAdmin.UID = getEnv("SEED_ADMIN_UID", c.SeedAdmin.UID)
	c.SeedAdmin.Email = strings.ToLower(strings.TrimSpace(getEnv("SEED_ADMIN_EMAIL", c.SeedAdmin.Email)))
	c.SeedAdmin.DisplayName = getEnv("SEED_ADMIN_NAME", c.SeedAdmin.DisplayName)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.PerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimit.PerMinute)
	c.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Tasks.DefaultDueDays = getEnvInt("TASK_DEFAULT_DUE_DAYS", c.Tasks.DefaultDueDays)
	c.Tasks.ListLimit = int64(getEnvInt("TASK_LIST_LIMIT", int(c.Tasks.ListLimit)))

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
}

// Validate checks combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Identity.Provider {
	case ProviderFirebase:
		if c.Identity.FirebaseCredentialsFile == "" &&
			(c.Identity.FirebaseProjectID == "" || c.Identity.FirebaseClientEmail == "" || c.Identity.FirebasePrivateKey == "") {
			return fmt.Errorf("missing required Firebase settings: FIREBASE_PROJECT_ID, FIREBASE_CLIENT_EMAIL, FIREBASE_PRIVATE_KEY or FIREBASE_CREDENTIALS_FILE")
		}
	case ProviderLocal:
		if c.Identity.LocalSecret == "" {
			return fmt.Errorf("LOCAL_IDENTITY_SECRET is required for the local identity provider")
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}
	if c.Tasks.DefaultDueDays <= 0 {
		return fmt.Errorf("TASK_DEFAULT_DUE_DAYS must be positive")
	}
	if c.Tasks.ListLimit <= 0 {
		return fmt.Errorf("TASK_LIST_LIMIT must be positive")
	}
	return nil
}

// UsesMemoryStore reports whether the Mongo URI selects the in-memory stores.
func (c *MongoConfig) UsesMemoryStore() bool {
	return c.URI == MemoryStoreURI
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
