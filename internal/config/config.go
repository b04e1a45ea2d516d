package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	APIAddr       string `env:"API_ADDR" envDefault:":3000"`
	PostgresDSN   string `env:"POSTGRES_DSN,notEmpty"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"10"`
	MaxAttempts       int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase       time.Duration `env:"BACKOFF_BASE" envDefault:"1s"`
	LeaseTimeout      time.Duration `env:"LEASE_TIMEOUT" envDefault:"60s"`

	// StepDelay scales the simulated latency of every pipeline step.
	StepDelay  time.Duration `env:"STEP_DELAY" envDefault:"500ms"`
	CloseGrace time.Duration `env:"CLOSE_GRACE" envDefault:"100ms"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`
}

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
