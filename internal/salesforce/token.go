package salesforce

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/metrics"
)

// Option names of the persisted token state.
const (
	OptionAccessToken    = "woocommerce_nwsi_access_token"
	OptionRefreshToken   = "woocommerce_nwsi_refresh_token"
	OptionInstanceURL    = "woocommerce_nwsi_instance_url"
	OptionConnectionHash = "woocommerce_nwsi_connection_hash"
	OptionOAuthState     = "woocommerce_nwsi_oauth_state"
)

// SecretStore persists token state encrypted at rest.
type SecretStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// TokenManager owns the OAuth2 access/refresh token pair.
type TokenManager struct {
	client  *Client
	secrets SecretStore

	loginURL       string
	consumerKey    string
	consumerSecret string
	redirectURI    string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	instanceURL  string

	refreshGroup singleflight.Group
}

func NewTokenManager(cfg config.SalesforceConfig, client *Client, secrets SecretStore) *TokenManager {
	return &TokenManager{
		client:         client,
		secrets:        secrets,
		loginURL:       cfg.LoginURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		redirectURI:    cfg.RedirectURI,
	}
}

// Load reads the stored token state into memory.
func (m *TokenManager) Load(ctx context.Context) error {
	access, err := m.secrets.Get(ctx, OptionAccessToken)
	if err != nil {
		return fmt.Errorf("failed to load access token: %w", err)
	}
	refresh, err := m.secrets.Get(ctx, OptionRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to load refresh token: %w", err)
	}
	instance, err := m.secrets.Get(ctx, OptionInstanceURL)
	if err != nil {
		return fmt.Errorf("failed to load instance url: %w", err)
	}

	m.mu.Lock()
	m.accessToken, m.refreshToken, m.instanceURL = access, refresh, instance
	m.mu.Unlock()
	return nil
}

func (m *TokenManager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

func (m *TokenManager) InstanceURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instanceURL
}

// HasValidToken reports whether a non-empty access token is stored. It does
// not mean the token is still accepted by Salesforce.
func (m *TokenManager) HasValidToken(ctx context.Context) bool {
	token, err := m.secrets.Get(ctx, OptionAccessToken)
	if err != nil {
		logger.Log.Warn("Failed to read access token", zap.Error(err))
		return false
	}
	return token != ""
}

// ExchangeCode trades an OAuth authorization code for tokens and stores them
// together with the hash of the current connection settings.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) error {
	if m.consumerKey == "" || m.consumerSecret == "" {
		return ErrMissingCredentials
	}
	form := url.Values{
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"client_id":     {m.consumerKey},
		"client_secret": {m.consumerSecret},
		"redirect_uri":  {m.redirectURI},
	}

	resp := m.client.Send(ctx, m.tokenURL(), false, http.MethodPost, form.Encode(), "application/x-www-form-urlencoded")

	access := resp.String("access_token")
	if access == "" {
		return ErrAccessToken
	}
	instance := resp.String("instance_url")
	if instance == "" {
		return ErrInstanceURL
	}
	refresh := resp.String("refresh_token")

	values := []struct{ name, value string }{
		{OptionAccessToken, access},
		{OptionRefreshToken, refresh},
		{OptionInstanceURL, instance},
		{OptionConnectionHash, m.connectionHash()},
	}
	for _, v := range values {
		if err := m.secrets.Set(ctx, v.name, v.value); err != nil {
			return fmt.Errorf("failed to store %s: %w", v.name, err)
		}
	}

	m.mu.Lock()
	m.accessToken, m.refreshToken, m.instanceURL = access, refresh, instance
	m.mu.Unlock()

	logger.Log.Info("Obtained Salesforce access token", zap.String("instance_url", instance))
	return nil
}

// Refresh obtains a new access token with the stored refresh token. On any
// failure the previous state is left untouched and false is returned.
// Concurrent callers in this process share a single refresh request, which
// is not cancelled with the caller that started it.
func (m *TokenManager) Refresh(ctx context.Context) bool {
	shared := context.WithoutCancel(ctx)
	v, _, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.refresh(shared), nil
	})
	return v.(bool)
}

func (m *TokenManager) refresh(ctx context.Context) bool {
	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.consumerKey},
		"client_secret": {m.consumerSecret},
		"refresh_token": {refreshToken},
	}
	resp := m.client.Send(ctx, m.tokenURL(), false, http.MethodPost, form.Encode(), "application/x-www-form-urlencoded")

	access := resp.String("access_token")
	instance := resp.String("instance_url")
	if access == "" || instance == "" {
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
		logger.Log.Warn("Salesforce token refresh failed")
		return false
	}

	if err := m.secrets.Set(ctx, OptionAccessToken, access); err != nil {
		logger.Log.Error("Failed to store refreshed access token", zap.Error(err))
	}
	if err := m.secrets.Set(ctx, OptionInstanceURL, instance); err != nil {
		logger.Log.Error("Failed to store instance url", zap.Error(err))
	}

	m.mu.Lock()
	m.accessToken, m.instanceURL = access, instance
	m.mu.Unlock()

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logger.Log.Info("Refreshed Salesforce access token")
	return true
}

// ConnectionChanged reports whether the stored tokens were issued for other
// connection settings (consumer key, secret or login URL).
func (m *TokenManager) ConnectionChanged(ctx context.Context) bool {
	stored, err := m.secrets.Get(ctx, OptionConnectionHash)
	if err != nil {
		logger.Log.Warn("Failed to read connection hash", zap.Error(err))
		return true
	}
	return stored != m.connectionHash()
}

// AuthorizeURL returns the URL that starts the OAuth web flow, or "" when
// the credentials are missing or a token for this connection already exists.
// Each URL carries a fresh state that replaces any pending one.
func (m *TokenManager) AuthorizeURL(ctx context.Context) (string, error) {
	if m.consumerKey == "" || m.consumerSecret == "" {
		return "", nil
	}
	if m.HasValidToken(ctx) && !m.ConnectionChanged(ctx) {
		return "", nil
	}

	state := uuid.NewString()
	if err := m.secrets.Set(ctx, OptionOAuthState, state); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {m.consumerKey},
		"redirect_uri":  {m.redirectURI},
		"state":         {state},
	}
	return m.loginURL + "/services/oauth2/authorize?" + q.Encode(), nil
}

// CompleteAuthorization exchanges code only if state matches the pending
// authorization. The pending state is consumed whether or not it matches.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, state, code string) error {
	pending, err := m.secrets.Get(ctx, OptionOAuthState)
	if err != nil {
		return fmt.Errorf("failed to load oauth state: %w", err)
	}
	if pending == "" {
		return ErrInvalidState
	}
	if err := m.secrets.Set(ctx, OptionOAuthState, ""); err != nil {
		return fmt.Errorf("failed to clear oauth state: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(pending), []byte(state)) != 1 {
		logger.Log.Warn("Rejected OAuth callback with unknown state")
		return ErrInvalidState
	}
	return m.ExchangeCode(ctx, code)
}

func (m *TokenManager) tokenURL() string {
	return m.loginURL + "/services/oauth2/token"
}

func (m *TokenManager) connectionHash() string {
	sum := sha256.Sum256([]byte(m.consumerKey + "|" + m.consumerSecret + "|" + m.loginURL))
	return fmt.Sprintf("%x", sum)
}
