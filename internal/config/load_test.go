package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "wp_", cfg.Database.TablePrefix)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "v37.0", cfg.Salesforce.APIVersion)
	assert.Equal(t, 5*time.Second, cfg.Salesforce.GetTimeout())
	assert.Equal(t, "legacy", cfg.Sync.Ordering)
	assert.Equal(t, []string{"wc-processing", "wc-completed"}, cfg.Trigger.OrderStatuses)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
salesforce:
  login_url: https://test.salesforce.com/
  consumer_key: key-from-file
sync:
  workers: 2
  ordering: graph
`)
	t.Setenv("NWSI_SALESFORCE_CONSUMER_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://test.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "key-from-file", cfg.Salesforce.ConsumerKey)
	assert.Equal(t, "from-env", cfg.Salesforce.ConsumerSecret)
	assert.Equal(t, 2, cfg.Sync.Workers)
	assert.Equal(t, "graph", cfg.Sync.Ordering)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown ordering", "sync:\n  ordering: random\n"},
		{"unknown email mode", "sync:\n  email_validation: loose\n"},
		{"zero workers", "sync:\n  workers: 0\n"},
		{"binlog without user", "trigger:\n  binlog: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestServerConfig_CheckExposure(t *testing.T) {
	tests := []struct {
		name    string
		server  ServerConfig
		wantErr bool
	}{
		{"loopback without token", ServerConfig{Host: "127.0.0.1"}, false},
		{"localhost without token", ServerConfig{Host: "localhost"}, false},
		{"ipv6 loopback without token", ServerConfig{Host: "::1"}, false},
		{"all interfaces without token", ServerConfig{Host: "0.0.0.0"}, true},
		{"empty host without token", ServerConfig{Host: ""}, true},
		{"all interfaces with token", ServerConfig{Host: "0.0.0.0", AuthToken: "secret"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.server.CheckExposure()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
