// Package config reads application settings from the environment, an optional
// .env file and an optional config.toml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultFileDir  = "./data"
	defaultDBDriver = "sqlite"
)

// Config holds application configuration.
type Config struct {
	AppEnv        string
	Port          string
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	FileStoreDir  string
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	SessionTTL    time.Duration
	LogLevel      string
	LogFormat     string

	Redis RedisConfig
	Kafka KafkaConfig
	MinIO MinIOConfig
}

type RedisConfig struct {
	Addr     string
	Password string
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// IsDev reports whether the app runs in local development mode.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Warnings lists missing settings worth logging at startup.
func (c Config) Warnings() []string {
	var out []string
	if c.AdminEmail == "" {
		out = append(out, "ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		out = append(out, "ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	if c.DBDriver == "postgres" && c.DatabaseURL == "" {
		out = append(out, "DB_DRIVER is postgres but DATABASE_URL is not set")
	}
	return out
}

// Load reads .env (best effort), config.toml (optional) and the environment,
// in increasing order of precedence.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return load(viper.New(), ".")
}

func load(v *viper.Viper, configDir string) (Config, error) {
	v.SetDefault("app_env", "dev")
	v.SetDefault("port", defaultPort)
	v.SetDefault("db_driver", defaultDBDriver)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("file_store_dir", defaultFileDir)
	v.SetDefault("session_ttl", 7*24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "")
	v.SetDefault("kafka_audit_topic", "signworks.audit")
	v.SetDefault("minio_bucket", "signworks")

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		AppEnv:        v.GetString("app_env"),
		Port:          v.GetString("port"),
		DBDriver:      strings.ToLower(v.GetString("db_driver")),
		DBPath:        v.GetString("db_path"),
		DatabaseURL:   v.GetString("database_url"),
		FileStoreDir:  v.GetString("file_store_dir"),
		AdminEmail:    v.GetString("admin_email"),
		AdminPassword: v.GetString("admin_password"),
		SessionSecret: v.GetString("session_secret"),
		SessionTTL:    v.GetDuration("session_ttl"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(v.GetString("kafka_brokers")),
			AuditTopic: v.GetString("kafka_audit_topic"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("minio_endpoint"),
			AccessKey: v.GetString("minio_access_key"),
			SecretKey: v.GetString("minio_secret_key"),
			Bucket:    v.GetString("minio_bucket"),
			UseSSL:    v.GetBool("minio_use_ssl"),
		},
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "text"
		}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
