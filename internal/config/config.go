package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int    `mapstructure:"idle_timeout_sec"`
}

type App struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	GinMode  string `mapstructure:"gin_mode"`
	Timezone string `mapstructure:"timezone"`
	HTTP     HTTP   `mapstructure:"http"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DB struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	Host               string `mapstructure:"host"`
	Port               string `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Cache struct {
	Driver      string `mapstructure:"driver"`
	TTLSec      int    `mapstructure:"ttl_sec"`
	MemoryItems int    `mapstructure:"memory_items"`
}

type JWT struct {
	Secret            string `mapstructure:"secret"`
	Issuer            string `mapstructure:"issuer"`
	AccessTokenTTLMin int    `mapstructure:"access_token_ttl_min"`
}

type Storage struct {
	Root           string `mapstructure:"root"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type Limits struct {
	RPS          float64 `mapstructure:"rps"`
	Burst        int     `mapstructure:"burst"`
	Concurrency  int64   `mapstructure:"concurrency"`
	MaxBodyBytes int64   `mapstructure:"max_body_bytes"`
	TimeoutSec   int     `mapstructure:"timeout_sec"`
}

type Config struct {
	App     App     `mapstructure:"app"`
	Log     Log     `mapstructure:"log"`
	DB      DB      `mapstructure:"db"`
	Redis   Redis   `mapstructure:"redis"`
	Cache   Cache   `mapstructure:"cache"`
	JWT     JWT     `mapstructure:"jwt"`
	Storage Storage `mapstructure:"storage"`
	Limits  Limits  `mapstructure:"limits"`
}

// Load reads configuration from defaults, an optional YAML file and APP_*
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "task-lifecycle-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.gin_mode", "debug")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.read_timeout_sec", 15)
	v.SetDefault("app.http.write_timeout_sec", 30)
	v.SetDefault("app.http.idle_timeout_sec", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.file", "")
	v.SetDefault("log.compress", false)

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "taskuser")
	v.SetDefault("db.password", "taskpassword")
	v.SetDefault("db.name", "task_management")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.ttl_sec", 3600)
	v.SetDefault("cache.memory_items", 1024)

	v.SetDefault("jwt.secret", "default-secret-key-change-me")
	v.SetDefault("jwt.issuer", "task-lifecycle-api")
	v.SetDefault("jwt.access_token_ttl_min", 60)

	v.SetDefault("storage.root", "./storage/attachments")
	v.SetDefault("storage.public_base_url", "/storage/attachments")
	v.SetDefault("storage.max_upload_bytes", 10<<20)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.concurrency", 300)
	v.SetDefault("limits.max_body_bytes", 16<<20)
	v.SetDefault("limits.timeout_sec", 10)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
	}
	return nil
}

// Location returns the timezone due dates are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTLMin) * time.Minute
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production" || c.App.GinMode == "release"
}
