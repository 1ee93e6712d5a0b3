package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"possync/internal/domain/entity"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".possync"
	defaultCallTimeout   = 10
	defaultMaxAttempts   = 5
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	DataPath      string `mapstructure:"data_path"`

	OwnerID string `mapstructure:"owner_id"`
	StaffID string `mapstructure:"staff_id"`
	StoreID string `mapstructure:"store_id"`

	SyncInterval    int `mapstructure:"sync_interval_seconds"`
	ProbeInterval   int `mapstructure:"probe_interval_seconds"`
	CallTimeout     int `mapstructure:"call_timeout_seconds"`
	MaxAttempts     int `mapstructure:"max_attempts"`
	PersistDebounce int `mapstructure:"persist_debounce_ms"`

	// StatePassphrase включает шифрование локального хранилища.
	StatePassphrase string `mapstructure:"state_passphrase"`

	// PersistKinds - типы, которые сохраняются между запусками.
	PersistKinds []entity.Kind `mapstructure:"-"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env и переменные окружения.
func Load() (*Config, error) {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("SYNC_INTERVAL_SECONDS", 60)
	v.SetDefault("PROBE_INTERVAL_SECONDS", 5)
	v.SetDefault("CALL_TIMEOUT_SECONDS", defaultCallTimeout)
	v.SetDefault("MAX_ATTEMPTS", defaultMaxAttempts)
	v.SetDefault("PERSIST_DEBOUNCE_MS", 250)
	v.SetDefault("PERSIST_KINDS", "store,staff,product,category,cart_item,sale,subscription")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	dataPath := v.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "state.db")
	}

	kinds, err := parseKinds(v.GetString("PERSIST_KINDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:             v.GetString("APP_ENV"),
		ServerAddress:   v.GetString("SERVER_ADDRESS"),
		EnableTLS:       v.GetBool("ENABLE_TLS"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		ConfigDir:       configDir,
		DataPath:        dataPath,
		OwnerID:         v.GetString("OWNER_ID"),
		StaffID:         v.GetString("STAFF_ID"),
		StoreID:         v.GetString("STORE_ID"),
		SyncInterval:    v.GetInt("SYNC_INTERVAL_SECONDS"),
		ProbeInterval:   v.GetInt("PROBE_INTERVAL_SECONDS"),
		CallTimeout:     v.GetInt("CALL_TIMEOUT_SECONDS"),
		MaxAttempts:     v.GetInt("MAX_ATTEMPTS"),
		PersistDebounce: v.GetInt("PERSIST_DEBOUNCE_MS"),
		PersistKinds:    kinds,
		StatePassphrase: v.GetString("STATE_PASSPHRASE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseKinds(raw string) ([]entity.Kind, error) {
	var kinds []entity.Kind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := entity.ParseKind(part)
		if err != nil {
			return nil, fmt.Errorf("persist_kinds: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout_seconds должен быть положительным")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts должен быть положительным")
	}
	return nil
}

func (c *Config) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

func (c *Config) SyncIntervalDuration() time.Duration {
	return time.Duration(c.SyncInterval) * time.Second
}

func (c *Config) ProbeIntervalDuration() time.Duration {
	return time.Duration(c.ProbeInterval) * time.Second
}

func (c *Config) PersistDebounceDuration() time.Duration {
	return time.Duration(c.PersistDebounce) * time.Millisecond
}

// Persists сообщает, сохраняется ли тип между запусками.
func (c *Config) Persists(kind entity.Kind) bool {
	for _, k := range c.PersistKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
