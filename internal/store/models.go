package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Source kinds of a field mapping, as stored by the settings screen.
const (
	SourceStoreField = "woocommerce"
	SourcePicklist   = "sf-picklist"
	SourceCustom     = "custom"
)

// Relationship maps one WooCommerce entity (order or order line item) onto one
// Salesforce object type.
type Relationship struct {
	ID              int64            `db:"id" json:"id"`
	HashKey         string           `db:"hash_key" json:"hash_key"`
	FromObject      string           `db:"from_object" json:"from_object"`
	FromObjectLabel string           `db:"from_object_label" json:"from_object_label"`
	ToObject        string           `db:"to_object" json:"to_object"`
	ToObjectLabel   string           `db:"to_object_label" json:"to_object_label"`
	FieldMappings   []FieldMapping   `db:"relationships" json:"field_mappings"`
	RequiredObjects []RequiredObject `db:"required_sf_objects" json:"required_objects"`
	UniqueFields    []string         `db:"unique_sf_fields" json:"unique_fields"`
	Active          bool             `db:"active" json:"active"`
	CreatedAt       time.Time        `db:"date_created" json:"created_at"`
	UpdatedAt       time.Time        `db:"date_updated" json:"updated_at"`
}

// FieldMapping is one source -> destination rule. From holds the store field
// name for woocommerce sources, Value holds the literal for picklist/custom
// sources ("current" means today for date fields).
type FieldMapping struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value,omitempty"`
}

// RequiredObject declares that the Salesforce record ID of Name, created
// earlier in the same run, is written into the destination field ID.
type RequiredObject struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Order sync statuses written to the order's post meta.
const (
	SyncStatusNone    = "none"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

type OrderSyncStatus struct {
	OrderID int64
	Status  string
	Errors  []string
}

type SyncHistory struct {
	ID           string          `db:"id"`
	OrderID      int64           `db:"order_id"`
	Trigger      string          `db:"trigger_source"`
	StartedAt    time.Time       `db:"started_at"`
	CompletedAt  sql.NullTime    `db:"completed_at"`
	CreatedIDs   json.RawMessage `db:"created_ids"`
	Status       string          `db:"status"`
	ErrorMessage sql.NullString  `db:"error_message"`
}
