package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Mount   MountConfig   `yaml:"mount"`
	Cache   CacheConfig   `yaml:"cache"`
	Remote  RemoteConfig  `yaml:"remote"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// MountConfig represents mount-point settings
type MountConfig struct {
	Mountpoint string `yaml:"mountpoint"`
	FSName     string `yaml:"fsname"`
	AllowOther bool   `yaml:"allow_other"`
	ReadOnly   bool   `yaml:"read_only"`
	UID        uint32 `yaml:"uid"`
	GID        uint32 `yaml:"gid"`
	FileMode   uint32 `yaml:"file_mode"`
	DirMode    uint32 `yaml:"dir_mode"`
}

// CacheConfig represents attribute-cache configuration. FreshnessWindow
// bounds how old a cached entry may be and still satisfy a lookup;
// CleanupThreshold is the age at which the background sweep evicts it.
// The two are deliberately independent settings.
type CacheConfig struct {
	FreshnessWindow  time.Duration `yaml:"freshness_window"`
	CleanupThreshold time.Duration `yaml:"cleanup_threshold"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
}

// RemoteConfig selects and configures the storage provider
type RemoteConfig struct {
	Provider string        `yaml:"provider"` // "dropbox" or "s3"
	Dropbox  DropboxConfig `yaml:"dropbox"`
	S3       S3Config      `yaml:"s3"`
}

// DropboxConfig represents Dropbox API settings
type DropboxConfig struct {
	Token           string        `yaml:"token"`
	APIEndpoint     string        `yaml:"api_endpoint"`
	ContentEndpoint string        `yaml:"content_endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
}

// S3Config represents S3 provider settings
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// MetricsConfig represents Prometheus metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
		},
		Mount: MountConfig{
			FSName:   "dropboxfs",
			FileMode: 0644,
			DirMode:  0755,
		},
		Cache: CacheConfig{
			FreshnessWindow:  3 * time.Second,
			CleanupThreshold: 4 * time.Second,
			SweepInterval:    10 * time.Second,
		},
		Remote: RemoteConfig{
			Provider: "dropbox",
			Dropbox: DropboxConfig{
				APIEndpoint:     "https://api.dropboxapi.com",
				ContentEndpoint: "https://content.dropboxapi.com",
				Timeout:         30 * time.Second,
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "dropboxfs",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("DROPBOXFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("DROPBOXFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("DROPBOXFS_TOKEN"); val != "" {
		c.Remote.Dropbox.Token = val
	}
	if val := os.Getenv("DROPBOXFS_PROVIDER"); val != "" {
		c.Remote.Provider = val
	}
	if val := os.Getenv("DROPBOXFS_MOUNTPOINT"); val != "" {
		c.Mount.Mountpoint = val
	}
	if val := os.Getenv("DROPBOXFS_S3_BUCKET"); val != "" {
		c.Remote.S3.Bucket = val
	}
	if val := os.Getenv("DROPBOXFS_S3_REGION"); val != "" {
		c.Remote.S3.Region = val
	}
	if val := os.Getenv("DROPBOXFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}
	if val := os.Getenv("DROPBOXFS_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("DROPBOXFS_CACHE_FRESHNESS"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.FreshnessWindow = d
		}
	}
	if val := os.Getenv("DROPBOXFS_CACHE_CLEANUP"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.CleanupThreshold = d
		}
	}
	if val := os.Getenv("DROPBOXFS_CACHE_SWEEP"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.SweepInterval = d
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Mount.Mountpoint == "" {
		return fmt.Errorf("mountpoint is required")
	}

	if c.Cache.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness_window must be greater than 0")
	}
	if c.Cache.CleanupThreshold <= 0 {
		return fmt.Errorf("cleanup_threshold must be greater than 0")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be greater than 0")
	}

	switch c.Remote.Provider {
	case "dropbox":
		if c.Remote.Dropbox.Token == "" {
			return fmt.Errorf("dropbox token is required (set remote.dropbox.token or DROPBOXFS_TOKEN)")
		}
	case "s3":
		if c.Remote.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unknown provider: %s (must be dropbox or s3)", c.Remote.Provider)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}
