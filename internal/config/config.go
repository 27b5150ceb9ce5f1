// Package config provides configuration management for the application.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Polls      PollsConfig      `mapstructure:"polls"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BrokerConfig holds connection settings for the WhatsApp broker.
// BaseURL, APIKey and WebhookVerifyToken are all required; a gateway client
// cannot be constructed without them.
type BrokerConfig struct {
	BaseURL            string               `mapstructure:"base_url"`
	APIKey             string               `mapstructure:"api_key"`
	WebhookVerifyToken string               `mapstructure:"webhook_verify_token"`
	Timeout            int                  `mapstructure:"timeout"`
	CircuitBreaker     CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type PollerConfig struct {
	BatchSize                   int `mapstructure:"batch_size"`
	IdleDelaySeconds            int `mapstructure:"idle_delay_seconds"`
	ProcessDelayMs              int `mapstructure:"process_delay_ms"`
	BackoffMinSeconds           int `mapstructure:"backoff_min_seconds"`
	BackoffMaxSeconds           int `mapstructure:"backoff_max_seconds"`
	NotConfiguredBackoffSeconds int `mapstructure:"not_configured_backoff_seconds"`
	LedgerTTLHours              int `mapstructure:"ledger_ttl_hours"`
	CleanupIntervalMinutes      int `mapstructure:"cleanup_interval_minutes"`
}

type PollsConfig struct {
	TTLMinutes       int    `mapstructure:"ttl_minutes"`
	FlushDebounceMs  int    `mapstructure:"flush_debounce_ms"`
	SecretPassphrase string `mapstructure:"secret_passphrase"`
	SnapshotKey      string `mapstructure:"snapshot_key"`
}

type QueueConfig struct {
	Driver     string `mapstructure:"driver"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("broker.timeout", 15)
	viper.SetDefault("broker.circuit_breaker.max_requests", 3)
	viper.SetDefault("broker.circuit_breaker.interval", 60)
	viper.SetDefault("broker.circuit_breaker.timeout", 60)
	viper.SetDefault("broker.circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("broker.circuit_breaker.consecutive_fails", 5)
	viper.SetDefault("poller.batch_size", 50)
	viper.SetDefault("poller.idle_delay_seconds", 5)
	viper.SetDefault("poller.process_delay_ms", 200)
	viper.SetDefault("poller.backoff_min_seconds", 1)
	viper.SetDefault("poller.backoff_max_seconds", 60)
	viper.SetDefault("poller.not_configured_backoff_seconds", 300)
	viper.SetDefault("poller.ledger_ttl_hours", 168)
	viper.SetDefault("poller.cleanup_interval_minutes", 60)
	viper.SetDefault("polls.ttl_minutes", 360)
	viper.SetDefault("polls.flush_debounce_ms", 2000)
	viper.SetDefault("polls.snapshot_key", "wabroker:polls:snapshot")
	viper.SetDefault("queue.driver", "memory")
	viper.SetDefault("queue.exchange", "wabroker.events")
	viper.SetDefault("queue.routing_key", "broker.event")
	viper.SetDefault("queue.buffer_size", 1024)
	viper.SetDefault("middleware.rate_limit", 100)
	viper.SetDefault("middleware.rate_limit_burst", 1000)
	viper.SetDefault("middleware.enable_cors", true)
	viper.SetDefault("middleware.allowed_origins", []string{"*"})

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}
