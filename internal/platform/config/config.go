package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup. FromEnv keeps main
// lean; defaults suit local development and are overridden in production.
type Config struct {
	Addr          string
	JWTSigningKey string
	BcryptCost    int
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
}

type PostgresConfig struct {
	// DSN is empty when Postgres is not configured; the server then runs on
	// in-memory stores (development mode).
	DSN string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Seeds      []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("REGISTRA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("REGISTRA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	bcryptCost := envInt("REGISTRA_BCRYPT_COST", 12)

	topic := os.Getenv("REGISTRA_AUDIT_TOPIC")
	if topic == "" {
		topic = "registra.audit.events"
	}

	var seeds []string
	if raw := os.Getenv("REGISTRA_KAFKA_SEEDS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
	}

	return Config{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		BcryptCost:    bcryptCost,
		Postgres: PostgresConfig{
			DSN: os.Getenv("REGISTRA_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REGISTRA_REDIS_URL"),
			PoolSize:     envInt("REGISTRA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REGISTRA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("REGISTRA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REGISTRA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REGISTRA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Seeds:      seeds,
			AuditTopic: topic,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
