package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wc-salesforce-sync/internal/metrics"
	"wc-salesforce-sync/internal/salesforce"
	"wc-salesforce-sync/internal/store"
	"wc-salesforce-sync/internal/sync"
)

// SyncService is what the handlers need from the sync manager.
type SyncService interface {
	Dispatch(orderID int64, trigger sync.Trigger) error
	SyncNow(ctx context.Context, orderID int64, trigger sync.Trigger) (sync.Result, error)
	GetStatus() sync.Status
}

// RelationshipStore is the part of the store the admin endpoints use.
type RelationshipStore interface {
	ListRelationships(ctx context.Context) ([]*store.Relationship, error)
	DeleteRelationships(ctx context.Context, ids []int64) (int64, error)
	SetRelationshipsActive(ctx context.Context, ids []int64, active bool) (int64, error)
	GetOrderSyncStatus(ctx context.Context, orderID int64) (*store.OrderSyncStatus, error)
	GetSyncHistory(ctx context.Context, orderID int64, limit, offset int) ([]*store.SyncHistory, error)
}

// Authorizer runs the OAuth web flow.
type Authorizer interface {
	AuthorizeURL(ctx context.Context) (string, error)
	CompleteAuthorization(ctx context.Context, state, code string) error
}

// Catalog serves Salesforce metadata.
type Catalog interface {
	AllObjects(ctx context.Context) (salesforce.Response, bool)
	DescribeObject(ctx context.Context, name string) (salesforce.Response, bool)
}

type Handler struct {
	syncManager SyncService
	store       RelationshipStore
	auth        Authorizer
	catalog     Catalog
	authToken   string
}

func NewHandler(manager SyncService, st RelationshipStore, auth Authorizer, catalog Catalog, authToken string) *Handler {
	return &Handler{
		syncManager: manager,
		store:       st,
		auth:        auth,
		catalog:     catalog,
		authToken:   authToken,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// The OAuth callback is reached by the browser redirect from Salesforce.
	r.Get("/oauth/callback", h.OAuthCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/orders/{id}/sync", h.SyncOrder)
		r.Get("/orders/{id}/status", h.GetOrderStatus)

		r.Get("/relationships", h.ListRelationships)
		r.Post("/relationships/activate", h.SetRelationshipsActive(true))
		r.Post("/relationships/deactivate", h.SetRelationshipsActive(false))
		r.Post("/relationships/delete", h.DeleteRelationships)

		r.Get("/sync/status", h.GetSyncStatus)
		r.Get("/sync/history", h.GetSyncHistory)

		r.Get("/oauth/authorize", h.AuthorizeURL)

		r.Get("/salesforce/objects", h.ListObjects)
		r.Get("/salesforce/objects/{name}", h.DescribeObject)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// CorsMiddleware lets the WordPress admin call the API from the browser.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware checks the static bearer token. An empty token disables
// the check.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.authToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
