package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Relay     RelayConfig     `yaml:"relay"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	MetricsPort    int      `yaml:"metrics_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the record store backend. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig enables replica fan-out when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// MinIOConfig enables latest-frame persistence when Endpoint is set.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type RelayConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	PersistInterval time.Duration `yaml:"persist_interval"`
}

type DashboardConfig struct {
	DeviceName    string        `yaml:"device_name"`
	DefaultDevice string        `yaml:"default_device"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheSizeMB   int           `yaml:"cache_size_mb"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("relay.poll_interval must be positive")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8081
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{
			"https://emotion-frontend-production.up.railway.app",
			"http://localhost:3000",
		}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "emotion.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "emotion-frames"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "emotion-ingestor"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "emotion"
	}
	if cfg.Relay.PollInterval == 0 {
		cfg.Relay.PollInterval = 100 * time.Millisecond
	}
	if cfg.Relay.PersistInterval == 0 {
		cfg.Relay.PersistInterval = 5 * time.Second
	}
	if cfg.Dashboard.DeviceName == "" {
		cfg.Dashboard.DeviceName = "Entrance Camera"
	}
	if cfg.Dashboard.DefaultDevice == "" {
		cfg.Dashboard.DefaultDevice = "jetson_1"
	}
	if cfg.Dashboard.CacheSizeMB == 0 {
		cfg.Dashboard.CacheSizeMB = 8
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EMO_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("EMO_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("EMO_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("EMO_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("EMO_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("EMO_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("EMO_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("EMO_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("EMO_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("EMO_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("EMO_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("EMO_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("EMO_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("EMO_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("EMO_RELAY_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Relay.PollInterval = d
		}
	}
	if v := os.Getenv("EMO_DEVICE_NAME"); v != "" {
		cfg.Dashboard.DeviceName = v
	}
	if v := os.Getenv("EMO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
