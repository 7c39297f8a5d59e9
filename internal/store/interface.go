package store

import (
	"context"
)

type Store interface {
	// Relationships
	CreateRelationship(ctx context.Context, rel *Relationship) error
	UpdateRelationship(ctx context.Context, rel *Relationship) error
	GetRelationship(ctx context.Context, hashKey string) (*Relationship, error)
	ListRelationships(ctx context.Context) ([]*Relationship, error)
	ListActiveRelationships(ctx context.Context) ([]*Relationship, error)
	DeleteRelationships(ctx context.Context, ids []int64) (int64, error)
	SetRelationshipsActive(ctx context.Context, ids []int64, active bool) (int64, error)

	// Options
	GetOption(ctx context.Context, name string) (string, error)
	SetOption(ctx context.Context, name, value string) error
	DeleteOption(ctx context.Context, name string) error

	// Order meta
	SetOrderSyncStatus(ctx context.Context, orderID int64, status string, messages []string) error
	GetOrderSyncStatus(ctx context.Context, orderID int64) (*OrderSyncStatus, error)
	ListUnsyncedOrders(ctx context.Context, postStatuses []string, limit int) ([]int64, error)

	// History
	CreateSyncHistory(ctx context.Context, history *SyncHistory) error
	UpdateSyncHistory(ctx context.Context, history *SyncHistory) error
	GetSyncHistory(ctx context.Context, orderID int64, limit, offset int) ([]*SyncHistory, error)

	// General
	Close() error
}
