package salesforce

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/salesforce/sftest"
)

type memSecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSecrets() *memSecrets {
	return &memSecrets{values: make(map[string]string)}
}

func (m *memSecrets) Get(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name], nil
}

func (m *memSecrets) Set(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

func testConfig(org *sftest.Org) config.SalesforceConfig {
	return config.SalesforceConfig{
		LoginURL:          org.URL(),
		ConsumerKey:       "consumer-key",
		ConsumerSecret:    "consumer-secret",
		RedirectURI:       "https://shop.example/nwsi/callback",
		APIVersion:        sftest.APIVersion,
		Timeout:           "2s",
		MaxRedirects:      3,
		RequestsPerSecond: 1000,
		Burst:             100,
	}
}

type harness struct {
	org     *sftest.Org
	secrets *memSecrets
	tokens  *TokenManager
	objects *ObjectManager
}

// newHarness connects a token and object manager to a fake org, with
// accessToken already stored as if a previous authorization had happened.
func newHarness(t *testing.T, accessToken string) *harness {
	t.Helper()

	org := sftest.NewOrg()
	t.Cleanup(org.Close)

	cfg := testConfig(org)
	secrets := newMemSecrets()
	secrets.values[OptionAccessToken] = accessToken
	secrets.values[OptionRefreshToken] = "refresh-1"
	secrets.values[OptionInstanceURL] = org.URL()

	client := NewClient(cfg)
	tokens := NewTokenManager(cfg, client, secrets)
	client.SetTokenSource(tokens)
	require.NoError(t, tokens.Load(context.Background()))

	return &harness{
		org:     org,
		secrets: secrets,
		tokens:  tokens,
		objects: NewObjectManager(client, tokens, cfg.APIVersion),
	}
}
