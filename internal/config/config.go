// Package config provides YAML-based configuration loading for Docket.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. DOCKET_DATABASE_HOST.
const EnvPrefix = "DOCKET"

// Config is the top-level Docket configuration, loaded from docket.yaml.
// It is passed explicitly into every component; nothing reads settings ad hoc.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Blob     BlobConfig     `yaml:"blob"`
	Server   ServerConfig   `yaml:"server"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Seed     SeedConfig     `yaml:"seed"`
}

// DatabaseConfig holds connection settings for the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"   envconfig:"DATABASE_DRIVER"`
	Host     string `yaml:"host"     envconfig:"DATABASE_HOST"`
	Port     int    `yaml:"port"     envconfig:"DATABASE_PORT"`
	User     string `yaml:"user"     envconfig:"DATABASE_USER"`
	Password string `yaml:"password" envconfig:"DATABASE_PASSWORD"`
	Name     string `yaml:"name"     envconfig:"DATABASE_NAME"`
	Path     string `yaml:"path"     envconfig:"DATABASE_PATH"`
}

// BlobConfig selects and configures the document blob store.
type BlobConfig struct {
	Backend         string `yaml:"backend"          envconfig:"BLOB_BACKEND"`
	Dir             string `yaml:"dir"              envconfig:"BLOB_DIR"`
	Bucket          string `yaml:"bucket"           envconfig:"BLOB_BUCKET"`
	Endpoint        string `yaml:"endpoint"         envconfig:"BLOB_ENDPOINT"`
	AccessKey       string `yaml:"access_key"       envconfig:"BLOB_ACCESS_KEY"`
	SecretKey       string `yaml:"secret_key"       envconfig:"BLOB_SECRET_KEY"`
	UseSSL          bool   `yaml:"use_ssl"          envconfig:"BLOB_USE_SSL"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"BLOB_CREDENTIALS_FILE"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port      int    `yaml:"port"       envconfig:"SERVER_PORT"`
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
}

// EventsConfig configures domain event publishing. No brokers means events
// are only logged.
type EventsConfig struct {
	Brokers []string `yaml:"brokers" envconfig:"EVENTS_BROKERS"`
	Topic   string   `yaml:"topic"   envconfig:"EVENTS_TOPIC"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"  envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// TimeoutConfig bounds every call to the store and the blob store.
type TimeoutConfig struct {
	Store time.Duration `yaml:"store" envconfig:"TIMEOUT_STORE"`
	Blob  time.Duration `yaml:"blob"  envconfig:"TIMEOUT_BLOB"`
}

// SeedConfig lists reference data upserted by `docket db init`.
type SeedConfig struct {
	Ministries       []EntitySeed `yaml:"ministries"`
	StateDepartments []EntitySeed `yaml:"state_departments"`
	Agencies         []EntitySeed `yaml:"agencies"`
	Users            []UserSeed   `yaml:"users"`
}

// EntitySeed is one ministry, state department or agency. Ministry names the
// parent ministry code for departments and agencies.
type EntitySeed struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Ministry string `yaml:"ministry"`
}

// UserSeed is one known user.
type UserSeed struct {
	ID          uint   `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
	Role        string `yaml:"role"`
}

// Load reads a YAML config file from path, applies an optional .env file next
// to the working directory and DOCKET_* environment overrides, and returns a
// validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg.finish()
}

// Parse unmarshals YAML bytes into a validated Config. Environment overrides
// are not applied.
func Parse(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	return cfg.finish()
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

func (c *Config) finish() (*Config, error) {
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overlays DOCKET_* environment variables onto each section.
func (c *Config) applyEnv() error {
	for _, section := range []interface{}{&c.Database, &c.Blob, &c.Server, &c.Events, &c.Log, &c.Timeouts} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return fmt.Errorf("config: environment: %w", err)
		}
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	case "postgres":
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "docket.db"
		}
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Name == "" {
		c.Database.Name = "docket"
	}

	if c.Blob.Backend == "" {
		c.Blob.Backend = "local"
	}
	if c.Blob.Backend == "local" && c.Blob.Dir == "" {
		c.Blob.Dir = "uploads"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "docket.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Timeouts.Store == 0 {
		c.Timeouts.Store = 5 * time.Second
	}
	if c.Timeouts.Blob == 0 {
		c.Timeouts.Blob = 30 * time.Second
	}
	for i := range c.Seed.Users {
		if c.Seed.Users[i].Role == "" {
			c.Seed.Users[i].Role = "user"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}
	switch c.Blob.Backend {
	case "local", "memory":
	case "minio":
		if c.Blob.Endpoint == "" {
			errs = append(errs, "blob.endpoint is required for minio")
		}
		if c.Blob.Bucket == "" {
			errs = append(errs, "blob.bucket is required for minio")
		}
	case "gcs":
		if c.Blob.Bucket == "" {
			errs = append(errs, "blob.bucket is required for gcs")
		}
	default:
		errs = append(errs, fmt.Sprintf("blob.backend %q is not one of local, memory, minio, gcs", c.Blob.Backend))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}
	if c.Timeouts.Store < 0 || c.Timeouts.Blob < 0 {
		errs = append(errs, "timeouts must not be negative")
	}
	for i, m := range c.Seed.Ministries {
		if m.Code == "" || m.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.ministries[%d] requires code and name", i))
		}
	}
	for i, u := range c.Seed.Users {
		if u.ID == 0 {
			errs = append(errs, fmt.Sprintf("seed.users[%d].id is required", i))
		}
		if u.Role != "user" && u.Role != "admin" {
			errs = append(errs, fmt.Sprintf("seed.users[%d].role %q is not one of user, admin", i, u.Role))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RequireServer checks the settings only `docket serve` needs.
func (c *Config) RequireServer() error {
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("config: server.jwt_secret is required to serve")
	}
	return nil
}
