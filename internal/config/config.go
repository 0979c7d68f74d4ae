package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from the environment; a local .env file is honored
// when present.
type Config struct {
	Addr          string        `envconfig:"ADDR" default:":8080"`
	PostgresDSN   string        `envconfig:"POSTGRES_DSN" default:"host=localhost user=user password=password dbname=anonpair port=5432 sslmode=disable"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB"`
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	// PersistQueueSize bounds the fire-and-forget persistence queue;
	// writes beyond it are dropped rather than blocking the hub.
	PersistQueueSize int `envconfig:"PERSIST_QUEUE_SIZE" default:"256"`
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("anonpair", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
