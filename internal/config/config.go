package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	JWTSecret       string
	JWTAccessExpiry time.Duration

	Collab CollabConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
}

// CollabConfig bounds a single editing session.
type CollabConfig struct {
	SessionCapacity  int
	EditLogCapacity  int
	ConflictWindow   time.Duration
	ConflictDistance int
	MailboxSize      int
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
	QueueSize   int
}

type KafkaConfig struct {
	Brokers     []string
	Topic       string
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// MaxSessionCapacity is the most participants any session may hold.
const MaxSessionCapacity = 10

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("required environment variable not set: JWT_SECRET")
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Env:         v.GetString("ENV"),
		DatabaseURL: v.GetString("DATABASE_URL"),

		JWTSecret:       secret,
		JWTAccessExpiry: v.GetDuration("JWT_ACCESS_EXPIRY"),

		Collab: CollabConfig{
			SessionCapacity:  v.GetInt("SESSION_CAPACITY"),
			EditLogCapacity:  v.GetInt("EDIT_LOG_CAPACITY"),
			ConflictWindow:   v.GetDuration("CONFLICT_WINDOW"),
			ConflictDistance: v.GetInt("CONFLICT_DISTANCE"),
			MailboxSize:      v.GetInt("SESSION_MAILBOX_SIZE"),
		},

		Redis: RedisConfig{
			Addr:        v.GetString("REDIS_ADDR"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			PresenceTTL: v.GetDuration("PRESENCE_TTL"),
			QueueSize:   v.GetInt("PRESENCE_QUEUE_SIZE"),
		},

		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			Topic:       v.GetString("KAFKA_TOPIC"),
			QueueSize:   v.GetInt("KAFKA_QUEUE_SIZE"),
			Workers:     v.GetInt("KAFKA_WORKERS"),
			MaxRetry:    v.GetInt("KAFKA_MAX_RETRY"),
			BaseBackoff: v.GetDuration("KAFKA_BASE_BACKOFF"),
			MaxBackoff:  v.GetDuration("KAFKA_MAX_BACKOFF"),
		},
	}

	if cfg.Collab.SessionCapacity <= 0 || cfg.Collab.EditLogCapacity <= 0 {
		return nil, fmt.Errorf("session and edit log capacity must be positive")
	}
	if cfg.Collab.SessionCapacity > MaxSessionCapacity {
		return nil, fmt.Errorf("SESSION_CAPACITY %d exceeds the limit of %d", cfg.Collab.SessionCapacity, MaxSessionCapacity)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")

	v.SetDefault("SESSION_CAPACITY", 10)
	v.SetDefault("EDIT_LOG_CAPACITY", 1000)
	v.SetDefault("CONFLICT_WINDOW", "5s")
	v.SetDefault("CONFLICT_DISTANCE", 10)
	v.SetDefault("SESSION_MAILBOX_SIZE", 64)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRESENCE_TTL", "90s")
	v.SetDefault("PRESENCE_QUEUE_SIZE", 1024)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "query-edits")
	v.SetDefault("KAFKA_QUEUE_SIZE", 4096)
	v.SetDefault("KAFKA_WORKERS", 2)
	v.SetDefault("KAFKA_MAX_RETRY", 3)
	v.SetDefault("KAFKA_BASE_BACKOFF", "100ms")
	v.SetDefault("KAFKA_MAX_BACKOFF", "2s")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}
