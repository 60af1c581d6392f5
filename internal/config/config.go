package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Maria       MariaConfig       `yaml:"maria"`
	Redis       RedisConfig       `yaml:"redis"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	Billing     BillingConfig     `yaml:"billing"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Client      ClientConfig      `yaml:"client"`
}

type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	JWTSecret   string `yaml:"jwt_secret"` // base64, пустое значение = случайный ключ
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type MariaConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSec   int    `yaml:"ttl_seconds"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// BillingConfig описывает приём webhook-событий платёжного провайдера.
type BillingConfig struct {
	WebhookSecret    string `yaml:"webhook_secret"`
	RequireSignature bool   `yaml:"require_signature"`
}

type MaintenanceConfig struct {
	DedupeIntervalMin int    `yaml:"dedupe_interval_minutes"`
	SnapshotDir       string `yaml:"snapshot_dir"`
}

// ClientConfig настройки клиента cmd/garden.
type ClientConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	AssetsDir  string `yaml:"assets_dir"`
	QueueDir   string `yaml:"queue_dir"` // журнал отложенных мутаций (BadgerDB)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GROWDORO_REST_PORT", 8090)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GROWDORO_METRICS_PORT", 2112)
}

// GetAPIBaseURL возвращает адрес API для клиента
func (c *ClientConfig) GetAPIBaseURL() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	if env := os.Getenv("GROWDORO_API_URL"); env != "" {
		return env
	}
	return "http://localhost:8090"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GROWDORO_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GROWDORO_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
