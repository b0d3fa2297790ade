package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Storage  StorageConfig  `mapstructure:"Storage"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port"`
	BaseURL string `mapstructure:"BaseURL"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

// StorageConfig holds the per-drive defaults applied when a drive row is
// first created, plus the upload de-duplication policy.
type StorageConfig struct {
	DefaultStorageLimit   int64         `mapstructure:"DefaultStorageLimit"`
	DefaultBandwidthLimit int64         `mapstructure:"DefaultBandwidthLimit"`
	BandwidthPeriod       time.Duration `mapstructure:"BandwidthPeriod"`
	TrashRetention        time.Duration `mapstructure:"TrashRetention"`
	DedupPolicy           string        `mapstructure:"DedupPolicy"` // skip | store
	MaxFileSize           int64         `mapstructure:"MaxFileSize"`
}

const (
	DedupSkip  = "skip"
	DedupStore = "store"
)

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Storage.DedupPolicy", "STORAGE_DEDUP_POLICY")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}

	if cfg.Storage.DefaultStorageLimit == 0 {
		cfg.Storage.DefaultStorageLimit = 5 * 1024 * 1024 * 1024 // 5GB
	}
	if cfg.Storage.DefaultBandwidthLimit == 0 {
		cfg.Storage.DefaultBandwidthLimit = 10 * 1024 * 1024 * 1024 // 10GB per period
	}
	if cfg.Storage.BandwidthPeriod == 0 {
		cfg.Storage.BandwidthPeriod = 24 * time.Hour
	}
	if cfg.Storage.TrashRetention == 0 {
		cfg.Storage.TrashRetention = 30 * 24 * time.Hour
	}
	if cfg.Storage.DedupPolicy == "" {
		cfg.Storage.DedupPolicy = DedupSkip
	}
	if cfg.Storage.DedupPolicy != DedupSkip && cfg.Storage.DedupPolicy != DedupStore {
		return nil, fmt.Errorf("invalid dedup policy %q: must be %q or %q",
			cfg.Storage.DedupPolicy, DedupSkip, DedupStore)
	}
	if cfg.Storage.MaxFileSize == 0 {
		cfg.Storage.MaxFileSize = 100 * 1024 * 1024 // 100MB
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
