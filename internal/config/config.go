package config

import (
	"fmt"
	"net"
	"time"
)

type Config struct {
	Database   DatabaseConnection `mapstructure:"database"`
	Salesforce SalesforceConfig   `mapstructure:"salesforce"`
	Sync       SyncConfig         `mapstructure:"sync"`
	Trigger    TriggerConfig      `mapstructure:"trigger"`
	Scheduler  SchedulerConfig    `mapstructure:"scheduler"`
	Server     ServerConfig       `mapstructure:"server"`
	Logging    LoggingConfig      `mapstructure:"logging"`
	Crypto     CryptoConfig       `mapstructure:"crypto"`
}

// DatabaseConnection points at the WordPress database that holds the
// WooCommerce orders, the options table and the relationship table.
type DatabaseConnection struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type SalesforceConfig struct {
	LoginURL          string  `mapstructure:"login_url"`
	ConsumerKey       string  `mapstructure:"consumer_key"`
	ConsumerSecret    string  `mapstructure:"consumer_secret"`
	RedirectURI       string  `mapstructure:"redirect_uri"`
	APIVersion        string  `mapstructure:"api_version"`
	Timeout           string  `mapstructure:"timeout"`
	MaxRedirects      int     `mapstructure:"max_redirects"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

func (s SalesforceConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

type SyncConfig struct {
	Workers   int  `mapstructure:"workers"`
	QueueSize int  `mapstructure:"queue_size"`
	Automatic bool `mapstructure:"automatic"`
	// Ordering is "legacy" (single forward pass) or "graph" (dependency sort).
	Ordering string `mapstructure:"ordering"`
	// EmailValidation is "legacy" or "strict".
	EmailValidation string `mapstructure:"email_validation"`
}

// TriggerConfig drives the binlog listener that dispatches orders after checkout.
type TriggerConfig struct {
	Binlog              bool     `mapstructure:"binlog"`
	ReplicationUser     string   `mapstructure:"replication_user"`
	ReplicationPassword string   `mapstructure:"replication_password"`
	ServerID            uint32   `mapstructure:"server_id"`
	OrderStatuses       []string `mapstructure:"order_statuses"`
}

type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Interval  string `mapstructure:"interval"`
	BatchSize int    `mapstructure:"batch_size"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	AuthToken    string `mapstructure:"auth_token"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// CheckExposure refuses an API without a bearer token on anything but a
// loopback address.
func (s ServerConfig) CheckExposure() error {
	if s.AuthToken != "" {
		return nil
	}
	if s.Host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(s.Host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: server.auth_token is required when listening on %q", ErrInvalidConfig, s.Host)
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CryptoConfig holds the secret used to encrypt tokens at rest. Changing it
// invalidates stored tokens and forces a new OAuth authorization.
type CryptoConfig struct {
	Key string `mapstructure:"key"`
}
