package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Worker   WorkerConfig
	AI       AIConfig
	Ingest   IngestConfig
	Outbox   OutboxRelayConfig
}

type ServerConfig struct {
	HTTPPort       int           `mapstructure:"http_port"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	ClientID          string   `mapstructure:"client_id"`
	NotificationTopic string   `mapstructure:"notification_topic"`
	DLQTopic          string   `mapstructure:"dlq_topic"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	ApprovalTokenTTL time.Duration `mapstructure:"approval_token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type WorkerConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	BusyDelay      time.Duration `mapstructure:"busy_delay"`
	StockInterval  time.Duration `mapstructure:"stock_interval"`
	IngestInterval time.Duration `mapstructure:"ingest_interval"`
}

type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type IngestConfig struct {
	SourceURL string        `mapstructure:"source_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type OutboxRelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/procure/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("PROCURE")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.metrics_port", 9091)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("kafka.client_id", "procure-notification-relay")
	viper.SetDefault("kafka.notification_topic", "procure.notifications")
	viper.SetDefault("kafka.dlq_topic", "procure.notifications.dlq")
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.approval_token_ttl", "48h")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("worker.initial_backoff", "2s")
	viper.SetDefault("worker.max_backoff", "30s")
	viper.SetDefault("worker.busy_delay", "2s")
	viper.SetDefault("worker.stock_interval", "60s")
	viper.SetDefault("worker.ingest_interval", "300s")
	viper.SetDefault("ai.timeout", "30s")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ingest.timeout", "20s")
	viper.SetDefault("outbox.poll_interval", "5s")
	viper.SetDefault("outbox.batch_size", 100)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
