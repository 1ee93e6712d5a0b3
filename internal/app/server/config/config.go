package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     DB
	Server Server
	Logger Logger
	Redis  Redis
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	ShutdownTimeout time.Duration
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Redis - кэш ключей идемпотентности. Пустой URL отключает кэш.
type Redis struct {
	URL string `env:"REDIS_URL"`
	TTL time.Duration
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}
	return cfg
}

// Load читает .env, если он есть, и переменные окружения.
func Load() (*Config, error) {
	path := envPath
	if _, err := os.Stat(".env"); err == nil {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", EnvLocal)
	v.SetDefault("RUN_ADDRESS", ":8080")
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("IDEMPOTENCY_TTL_HOURS", 24)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)

	cfg := &Config{
		Env: v.GetString("APP_ENV"),
		DB: DB{
			DatabaseURI: v.GetString("DATABASE_URI"),
			Migrations:  v.GetString("MIGRATIONS_PATH"),
		},
		Server: Server{
			RunAddress:      v.GetString("RUN_ADDRESS"),
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Logger: Logger{LogLevel: v.GetString("LOG_LEVEL")},
		Redis: Redis{
			URL: v.GetString("REDIS_URL"),
			TTL: time.Duration(v.GetInt("IDEMPOTENCY_TTL_HOURS")) * time.Hour,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	if c.Server.RunAddress == "" {
		return fmt.Errorf("RUN_ADDRESS is required")
	}
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_HOURS must be positive")
	}
	return nil
}
