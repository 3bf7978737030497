package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Generation GenerationConfig `yaml:"generation"`
	Geocoding  GeocodingConfig  `yaml:"geocoding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Events     EventsConfig     `yaml:"events"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	CORSOrigin     string        `yaml:"cors_origin"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// StorageConfig selects where uploaded photos are kept
type StorageConfig struct {
	Driver     string        `yaml:"driver"` // local, s3 or minio
	LocalDir   string        `yaml:"local_dir"`
	Bucket     string        `yaml:"bucket"`
	Region     string        `yaml:"region"`
	Endpoint   string        `yaml:"endpoint"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	UseSSL     bool          `yaml:"use_ssl"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

// GenerationConfig holds text-generation service configuration
type GenerationConfig struct {
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`
	Temperature     float32       `yaml:"temperature"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	MaxImageEdge    int           `yaml:"max_image_edge"`
}

// GeocodingConfig holds reverse-geocoding configuration. Empty APIKey disables lookups.
type GeocodingConfig struct {
	APIKey   string        `yaml:"api_key"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ClassifierConfig holds the asynchronous photo classifier endpoint. Empty URL disables notifications.
type ClassifierConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// EventsConfig holds post-commit hook configuration
type EventsConfig struct {
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// Default returns the configuration used for any value the file leaves unset
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   3 * time.Minute,
			MaxUploadBytes: 50 << 20,
			CORSOrigin:     "*",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "travel_diary",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Driver:     "local",
			LocalDir:   "uploads",
			Region:     "us-east-1",
			PresignTTL: 15 * time.Minute,
		},
		Generation: GenerationConfig{
			Model:           "gemini-2.5-flash",
			MaxOutputTokens: 1000,
			Temperature:     0.7,
			AttemptTimeout:  60 * time.Second,
			MaxAttempts:     3,
			InitialBackoff:  1 * time.Second,
			MaxBackoff:      8 * time.Second,
			MaxImageEdge:    1024,
		},
		Geocoding: GeocodingConfig{
			Language: "ko",
			Timeout:  5 * time.Second,
		},
		Classifier: ClassifierConfig{
			Timeout: 10 * time.Second,
		},
		Events: EventsConfig{
			HandlerTimeout: 30 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then applies env overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DIARY_DB_PASSWORD", &c.Database.Password},
		{"DIARY_JWT_SECRET", &c.JWT.Secret},
		{"GEMINI_API_KEY", &c.Generation.APIKey},
		{"GOOGLE_MAPS_API_KEY", &c.Geocoding.APIKey},
		{"DIARY_CLASSIFIER_TOKEN", &c.Classifier.Token},
		{"AWS_ACCESS_KEY_ID", &c.Storage.AccessKey},
		{"AWS_SECRET_ACCESS_KEY", &c.Storage.SecretKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks values that have no usable default
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1")
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
	case "s3", "minio":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.MaxConns)
}
