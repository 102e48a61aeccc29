package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Playout    PlayoutConfig
	Extender   ExtenderConfig
	AutoExtend AutoExtendConfig
	Notify     NotifyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	MetricsPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// DatabaseConfig holds timeline store configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds asset store configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	// PublicBaseURL overrides the URL public asset links are built from.
	// When empty, links are built from the endpoint itself.
	PublicBaseURL string
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// PlayoutConfig holds playout resolver configuration
type PlayoutConfig struct {
	// StandbyKey is the well-known key of the fallback asset within each
	// channel namespace.
	StandbyKey string
	// LookbackItems is how many recently started items the active-item
	// scan considers.
	LookbackItems int
	// EvaluateTimeout bounds a single timeline read + resolution pass.
	EvaluateTimeout time.Duration
	// ChannelCacheTTL controls how long channel config stays cached.
	ChannelCacheTTL time.Duration
}

// ExtenderConfig holds schedule extender configuration
type ExtenderConfig struct {
	// SafetyCap aborts any extension whose estimated row count exceeds it.
	SafetyCap int
	// LeaseTTL bounds how long the per-channel extension lease is held.
	LeaseTTL time.Duration
}

// AutoExtendConfig holds runway monitor configuration
type AutoExtendConfig struct {
	Enabled bool
	// Interval is how often every channel's runway is checked.
	Interval time.Duration
	// MinRunway is the remaining schedule length below which an
	// extension job is enqueued.
	MinRunway time.Duration
	// Blocks is how many template blocks each automatic extension asks for.
	Blocks int
	// Cooldown suppresses re-enqueueing a channel while its previous
	// job may still be in flight.
	Cooldown time.Duration
}

// NotifyConfig holds outbound notification configuration. An empty URL
// disables notifications.
type NotifyConfig struct {
	URL         string
	Secret      string
	MaxAttempts int
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.metricsPort", 9091)
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.rateLimitRPS", 50)
	viper.SetDefault("server.rateLimitBurst", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "playout")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)
	viper.SetDefault("storage.publicBaseURL", "")

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Playout defaults
	viper.SetDefault("playout.standbyKey", "standby.mp4")
	viper.SetDefault("playout.lookbackItems", 8)
	viper.SetDefault("playout.evaluateTimeout", "5s")
	viper.SetDefault("playout.channelCacheTTL", "1m")

	// Extender defaults
	viper.SetDefault("extender.safetyCap", 2000)
	viper.SetDefault("extender.leaseTTL", "2m")

	// Auto-extend defaults
	viper.SetDefault("autoextend.enabled", true)
	viper.SetDefault("autoextend.interval", "1m")
	viper.SetDefault("autoextend.minRunway", "6h")
	viper.SetDefault("autoextend.blocks", 10)
	viper.SetDefault("autoextend.cooldown", "10m")

	// Notification defaults
	viper.SetDefault("notify.url", "")
	viper.SetDefault("notify.secret", "")
	viper.SetDefault("notify.maxAttempts", 3)
}
