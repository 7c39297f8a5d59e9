package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig reads the YAML file at path (optional) and applies NWSI_*
// environment overrides, e.g. NWSI_SALESFORCE_CONSUMER_KEY.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NWSI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Salesforce.LoginURL = strings.TrimRight(strings.TrimSpace(cfg.Salesforce.LoginURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "wordpress")
	v.SetDefault("database.table_prefix", "wp_")

	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.consumer_key", "")
	v.SetDefault("salesforce.consumer_secret", "")
	v.SetDefault("salesforce.redirect_uri", "")
	v.SetDefault("salesforce.api_version", "v37.0")
	v.SetDefault("salesforce.timeout", "5s")
	v.SetDefault("salesforce.max_redirects", 5)
	v.SetDefault("salesforce.requests_per_second", 10.0)
	v.SetDefault("salesforce.burst", 5)

	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.queue_size", 1000)
	v.SetDefault("sync.automatic", true)
	v.SetDefault("sync.ordering", "legacy")
	v.SetDefault("sync.email_validation", "legacy")

	v.SetDefault("trigger.binlog", false)
	v.SetDefault("trigger.replication_user", "")
	v.SetDefault("trigger.replication_password", "")
	v.SetDefault("trigger.server_id", 1001)
	v.SetDefault("trigger.order_statuses", []string{"wc-processing", "wc-completed"})

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "@every 15m")
	v.SetDefault("scheduler.batch_size", 50)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("crypto.key", "")
}

// Validate reports the first setting that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("%w: sync.workers must be positive", ErrInvalidConfig)
	}
	if c.Sync.QueueSize <= 0 {
		return fmt.Errorf("%w: sync.queue_size must be positive", ErrInvalidConfig)
	}
	switch c.Sync.Ordering {
	case "legacy", "graph":
	default:
		return fmt.Errorf("%w: sync.ordering %q", ErrInvalidConfig, c.Sync.Ordering)
	}
	switch c.Sync.EmailValidation {
	case "legacy", "strict":
	default:
		return fmt.Errorf("%w: sync.email_validation %q", ErrInvalidConfig, c.Sync.EmailValidation)
	}
	if c.Salesforce.LoginURL == "" {
		return fmt.Errorf("%w: salesforce.login_url is required", ErrInvalidConfig)
	}
	if c.Salesforce.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: salesforce.requests_per_second must be positive", ErrInvalidConfig)
	}
	if c.Trigger.Binlog && c.Trigger.ReplicationUser == "" {
		return fmt.Errorf("%w: trigger.replication_user is required when binlog is enabled", ErrInvalidConfig)
	}
	return nil
}
