package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/salesforce"
	"wc-salesforce-sync/internal/sync"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type idsRequest struct {
	IDs []int64 `json:"ids"`
}

// SyncOrder queues a manual re-sync. With ?wait=true the sync runs inside the
// request and its result is returned.
func (h *Handler) SyncOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		res, err := h.syncManager.SyncNow(r.Context(), orderID, sync.TriggerManual)
		if errors.Is(err, sync.ErrAlreadyQueued) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	err := h.syncManager.Dispatch(orderID, sync.TriggerManual)
	switch {
	case errors.Is(err, sync.ErrAlreadyQueued):
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "already_queued", "order_id": orderID})
	case errors.Is(err, sync.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, sync.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "queued", "order_id": orderID})
	}
}

func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.store.GetOrderSyncStatus(r.Context(), orderID)
	if err != nil {
		logger.Log.Error("Failed to read order sync status", zap.Int64("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}
	errs := status.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": status.OrderID,
		"status":   status.Status,
		"errors":   errs,
	})
}

func (h *Handler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.store.ListRelationships(r.Context())
	if err != nil {
		logger.Log.Error("Failed to list relationships", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

func (h *Handler) SetRelationshipsActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := decodeIDs(w, r)
		if !ok {
			return
		}
		n, err := h.store.SetRelationshipsActive(r.Context(), ids, active)
		if err != nil {
			logger.Log.Error("Failed to update relationships", zap.Bool("active", active), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
	}
}

func (h *Handler) DeleteRelationships(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	n, err := h.store.DeleteRelationships(r.Context(), ids)
	if err != nil {
		logger.Log.Error("Failed to delete relationships", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.syncManager.GetStatus())
}

// GetSyncHistory lists sync runs, optionally for one order (?order_id=).
func (h *Handler) GetSyncHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID, _ := strconv.ParseInt(q.Get("order_id"), 10, 64)
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	history, err := h.store.GetSyncHistory(r.Context(), orderID, limit, offset)
	if err != nil {
		logger.Log.Error("Failed to read sync history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.AuthorizeURL(r.Context())
	if err != nil {
		logger.Log.Error("Failed to start OAuth flow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"url": u, "authorized": u == ""})
}

// OAuthCallback finishes the web flow started from AuthorizeURL. Only the
// state handed out with the pending authorization is accepted.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	err := h.auth.CompleteAuthorization(r.Context(), q.Get("state"), code)
	if errors.Is(err, salesforce.ErrInvalidState) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		logger.Log.Warn("OAuth code exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.catalog.AllObjects(r.Context())
	if !ok {
		writeError(w, http.StatusBadGateway, "salesforce request failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DescribeObject(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.catalog.DescribeObject(r.Context(), chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusBadGateway, "salesforce request failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func decodeIDs(w http.ResponseWriter, r *http.Request) ([]int64, bool) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return nil, false
	}
	return req.IDs, true
}
