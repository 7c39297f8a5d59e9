package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/mapping"
	"wc-salesforce-sync/internal/salesforce"
	"wc-salesforce-sync/internal/salesforce/sftest"
	"wc-salesforce-sync/internal/store"
)

type memRunStore struct {
	mu            sync.Mutex
	relationships []*store.Relationship
	statuses      map[int64]*store.OrderSyncStatus
	history       map[string]*store.SyncHistory
	unsynced      []int64
}

func newMemRunStore(rels ...*store.Relationship) *memRunStore {
	return &memRunStore{
		relationships: rels,
		statuses:      make(map[int64]*store.OrderSyncStatus),
		history:       make(map[string]*store.SyncHistory),
	}
}

func (s *memRunStore) ListActiveRelationships(context.Context) ([]*store.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Relationship
	for _, r := range s.relationships {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRunStore) SetOrderSyncStatus(_ context.Context, orderID int64, status string, messages []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[orderID] = &store.OrderSyncStatus{OrderID: orderID, Status: status, Errors: messages}
	return nil
}

func (s *memRunStore) CreateSyncHistory(_ context.Context, h *store.SyncHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.history[h.ID] = &cp
	return nil
}

func (s *memRunStore) UpdateSyncHistory(_ context.Context, h *store.SyncHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.history[h.ID] = &cp
	return nil
}

func (s *memRunStore) ListUnsyncedOrders(_ context.Context, _ []string, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > 0 && len(s.unsynced) > limit {
		return s.unsynced[:limit], nil
	}
	return s.unsynced, nil
}

func (s *memRunStore) status(orderID int64) *store.OrderSyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[orderID]
}

type memOrderSource struct {
	orders map[int64]map[string]interface{}
	items  map[int64][]map[string]interface{}
}

func (s *memOrderSource) LoadOrder(_ context.Context, orderID int64) (*mapping.OrderRecord, []*mapping.OrderItemRecord, error) {
	fields, ok := s.orders[orderID]
	if !ok {
		return nil, nil, fmt.Errorf("order %d not found", orderID)
	}
	var items []*mapping.OrderItemRecord
	for i, f := range s.items[orderID] {
		items = append(items, mapping.NewOrderItemRecord(orderID, int64(100+i), int64(200+i), i, f))
	}
	return mapping.NewOrderRecord(orderID, fields), items, nil
}

type memSecrets struct {
	mu     sync.Mutex
	values map[string]string
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

// newObjectManager connects a real object manager to a fake org with
// accessToken stored from an earlier authorization.
func newObjectManager(t *testing.T, accessToken string) (*salesforce.ObjectManager, *sftest.Org) {
	t.Helper()

	org := sftest.NewOrg()
	t.Cleanup(org.Close)

	cfg := config.SalesforceConfig{
		LoginURL:          org.URL(),
		ConsumerKey:       "consumer-key",
		ConsumerSecret:    "consumer-secret",
		APIVersion:        sftest.APIVersion,
		Timeout:           "2s",
		MaxRedirects:      3,
		RequestsPerSecond: 1000,
		Burst:             100,
	}
	secrets := &memSecrets{values: map[string]string{
		salesforce.OptionAccessToken:  accessToken,
		salesforce.OptionRefreshToken: "refresh-1",
		salesforce.OptionInstanceURL:  org.URL(),
	}}

	client := salesforce.NewClient(cfg)
	tokens := salesforce.NewTokenManager(cfg, client, secrets)
	client.SetTokenSource(tokens)
	require.NoError(t, tokens.Load(context.Background()))

	return salesforce.NewObjectManager(client, tokens, cfg.APIVersion), org
}

func stringField(from, to string) store.FieldMapping {
	return store.FieldMapping{Source: store.SourceStoreField, Type: "string", From: from, To: to}
}

func literal(to, v string) store.FieldMapping {
	return store.FieldMapping{Source: store.SourceCustom, Type: "string", To: to, Value: v}
}
