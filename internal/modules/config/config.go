package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs/"

	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	accessTokenENV    = "TERMINAL_TOKEN"
	refreshTokenENV   = "TERMINAL_REFRESH_TOKEN"
	emailENV          = "TERMINAL_EMAIL"
	passwordENV       = "TERMINAL_PASSWORD"
	apiURLENV         = "TERMINAL_API_URL"
	wsURLENV          = "TERMINAL_WS_URL"
)

// Config ...
type Config struct {
	Service struct {
		Name      string `yaml:"name"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	// Request API
	API struct {
		BaseURL  string        `yaml:"base_url"`
		Language string        `yaml:"language"`
		Timeout  time.Duration `yaml:"timeout"`
		// Сколько команд (open/close/sltp/...) пускаем в минуту
		CommandsPerMinute int `yaml:"commands_per_minute"`
	} `yaml:"api"`

	// Стриминговая сессия
	Session struct {
		URL              string        `yaml:"url"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	} `yaml:"session"`

	Auth struct {
		Email        string `yaml:"email"`
		Password     string `yaml:"password"`
		Token        string `yaml:"token"`
		RefreshToken string `yaml:"refresh_token"`
	} `yaml:"auth"`

	// Локальные настройки: file (viper) | postgres
	Prefs struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"prefs"`

	DB string `yaml:"db_dsn"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

// NewConfig читает configs/$CONFIG_FILE (по умолчанию values_local.yaml) и .env.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	return Load(configDir + configFileName)
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer func() {
		_ = file.Close()
	}()

	config := defaults()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, errors.Wrapf(err, "decode config file %s", path)
	}

	applyEnv(config)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	c := &Config{}
	c.Service.Name = "trade_terminal"
	c.Service.AdminPort = intFromEnv("ADMIN_PORT", 8081)
	c.Log.Level = getenvDefault("LOG_LEVEL", "info")
	c.API.Language = "en"
	c.API.Timeout = durationFromEnv("API_TIMEOUT", "15s")
	c.API.CommandsPerMinute = intFromEnv("COMMANDS_PER_MINUTE", 60)
	c.Session.ReconnectDelay = durationFromEnv("RECONNECT_DELAY", "10s")
	c.Session.PingInterval = durationFromEnv("PING_INTERVAL", "20s")
	c.Session.HandshakeTimeout = durationFromEnv("HANDSHAKE_TIMEOUT", "10s")
	c.Prefs.Backend = "file"
	c.Prefs.Path = "prefs.yaml"
	c.Tracing.Enabled = boolFromEnv("TRACING_ENABLED", false)
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	return c
}

// applyEnv: секреты и адреса из окружения перекрывают файл.
func applyEnv(config *Config) {
	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	config.Auth.Token = getenvDefault(accessTokenENV, config.Auth.Token)
	config.Auth.RefreshToken = getenvDefault(refreshTokenENV, config.Auth.RefreshToken)
	config.Auth.Email = getenvDefault(emailENV, config.Auth.Email)
	config.Auth.Password = getenvDefault(passwordENV, config.Auth.Password)
	config.API.BaseURL = getenvDefault(apiURLENV, config.API.BaseURL)
	config.Session.URL = getenvDefault(wsURLENV, config.Session.URL)
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Session.URL == "" {
		return errors.New("session.url is required")
	}
	if c.Session.ReconnectDelay <= 0 {
		return fmt.Errorf("session.reconnect_delay must be > 0, got %s", c.Session.ReconnectDelay)
	}
	if c.API.CommandsPerMinute <= 0 {
		return fmt.Errorf("api.commands_per_minute must be > 0, got %d", c.API.CommandsPerMinute)
	}
	switch c.Prefs.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("prefs.backend: unknown %q", c.Prefs.Backend)
	}
	if c.Prefs.Backend == "postgres" && c.DB == "" {
		return errors.New("prefs.backend=postgres needs db_dsn")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
