package salesforce

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/metrics"
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	AccessToken() string
}

// Client executes REST calls. It never returns errors: any failure surfaces
// as an empty Response for the caller to interpret.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	tokens  TokenSource
}

func NewClient(cfg config.SalesforceConfig) *Client {
	maxRedirects := cfg.MaxRedirects
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http: &http.Client{
			Timeout: cfg.GetTimeout(),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// SetTokenSource wires the token manager in after both are constructed.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// Send performs one request. For GET the body is appended as query string,
// for POST and DELETE it is sent verbatim.
func (c *Client) Send(ctx context.Context, rawURL string, needsAuth bool, method, body, contentType string) Response {
	method = strings.ToUpper(method)

	var reader io.Reader
	switch method {
	case http.MethodGet:
		if body != "" {
			rawURL += "?" + body
		}
	case http.MethodPost, http.MethodDelete:
		if body != "" {
			reader = strings.NewReader(body)
		}
	default:
		return Response{}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		logger.Log.Warn("Salesforce request not sent", zap.String("method", method), zap.Error(err))
		return Response{}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		logger.Log.Error("Failed to build Salesforce request", zap.String("url", rawURL), zap.Error(err))
		return Response{}
	}
	if needsAuth && c.tokens != nil {
		req.Header.Set("Authorization", "OAuth "+c.tokens.AccessToken())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.CRMRequests.WithLabelValues(method, "error").Inc()
		logger.Log.Warn("Salesforce request failed",
			zap.String("method", method),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return Response{}
	}
	defer resp.Body.Close()

	metrics.CRMRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Log.Warn("Failed to read Salesforce response", zap.Error(err))
		return Response{}
	}

	logger.Log.Debug("Salesforce request",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return decodeResponse(data)
}

// Get is Send with GET, authentication and no body.
func (c *Client) Get(ctx context.Context, rawURL string) Response {
	return c.Send(ctx, rawURL, true, http.MethodGet, "", "")
}
