package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wc-salesforce-sync/internal/database"
)

const (
	metaSyncStatus = "_sf_sync_status"
	metaSyncErrors = "_sf_sync_error_message"
)

// ErrMalformedRelationship is returned when a stored relationship row holds
// JSON that cannot be decoded.
var ErrMalformedRelationship = errors.New("malformed relationship")

type MySQLStore struct {
	db            *database.Database
	relationships string
	history       string
	options       string
	posts         string
	postmeta      string
}

func NewMySQLStore(db *database.Database) *MySQLStore {
	return &MySQLStore{
		db:            db,
		relationships: db.Table("nwsi_relationships"),
		history:       db.Table("nwsi_sync_history"),
		options:       db.Table("options"),
		posts:         db.Table("posts"),
		postmeta:      db.Table("postmeta"),
	}
}

// EnsureSchema creates the tables owned by the integration. WordPress core
// tables are expected to exist already.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.relationships + ` (
			id MEDIUMINT(9) NOT NULL AUTO_INCREMENT,
			hash_key VARCHAR(128) NOT NULL,
			relationships TEXT NOT NULL,
			from_object VARCHAR(255) NOT NULL,
			from_object_label VARCHAR(255),
			to_object VARCHAR(255) NOT NULL,
			to_object_label VARCHAR(255),
			required_sf_objects TEXT,
			unique_sf_fields TEXT,
			date_updated TIMESTAMP NULL,
			date_created TIMESTAMP NULL,
			active TINYINT DEFAULT 0,
			UNIQUE KEY id (id),
			UNIQUE (hash_key)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + s.history + ` (
			id CHAR(36) NOT NULL PRIMARY KEY,
			order_id BIGINT NOT NULL,
			trigger_source VARCHAR(32) NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME NULL,
			created_ids TEXT,
			status VARCHAR(16) NOT NULL,
			error_message TEXT,
			KEY order_id (order_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

const relationshipColumns = `id, hash_key, relationships, from_object, from_object_label, to_object, to_object_label,
	required_sf_objects, unique_sf_fields, active, date_created, date_updated`

func (s *MySQLStore) CreateRelationship(ctx context.Context, rel *Relationship) error {
	mappings, required, unique, err := encodeRelationship(rel)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `INSERT INTO ` + s.relationships + ` (hash_key, relationships, from_object, from_object_label, to_object,
			  to_object_label, required_sf_objects, unique_sf_fields, active, date_created, date_updated)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.DB.ExecContext(ctx, query,
		rel.HashKey,
		mappings,
		rel.FromObject,
		rel.FromObjectLabel,
		rel.ToObject,
		rel.ToObjectLabel,
		required,
		unique,
		rel.Active,
		now,
		now,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rel.ID = id
	rel.CreatedAt = now
	rel.UpdatedAt = now
	return nil
}

func (s *MySQLStore) UpdateRelationship(ctx context.Context, rel *Relationship) error {
	if rel.HashKey == "" {
		return fmt.Errorf("%w: missing hash key", ErrMalformedRelationship)
	}
	mappings, required, unique, err := encodeRelationship(rel)
	if err != nil {
		return err
	}

	query := `UPDATE ` + s.relationships + ` SET relationships = ?, required_sf_objects = ?, unique_sf_fields = ?,
			  date_updated = ? WHERE hash_key = ?`

	_, err = s.db.DB.ExecContext(ctx, query, mappings, required, unique, time.Now().UTC(), rel.HashKey)
	return err
}

func (s *MySQLStore) GetRelationship(ctx context.Context, hashKey string) (*Relationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM ` + s.relationships + ` WHERE hash_key = ?`

	rel, err := scanRelationship(s.db.DB.QueryRowContext(ctx, query, hashKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rel, err
}

func (s *MySQLStore) ListRelationships(ctx context.Context) ([]*Relationship, error) {
	return s.listRelationships(ctx, `SELECT `+relationshipColumns+` FROM `+s.relationships+` ORDER BY id`)
}

func (s *MySQLStore) ListActiveRelationships(ctx context.Context) ([]*Relationship, error) {
	return s.listRelationships(ctx, `SELECT `+relationshipColumns+` FROM `+s.relationships+` WHERE active = 1 ORDER BY id`)
}

func (s *MySQLStore) listRelationships(ctx context.Context, query string) ([]*Relationship, error) {
	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func (s *MySQLStore) DeleteRelationships(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, args := inClause(ids)
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM `+s.relationships+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MySQLStore) SetRelationshipsActive(ctx context.Context, ids []int64, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, args := inClause(ids)
	args = append([]interface{}{active}, args...)
	res, err := s.db.DB.ExecContext(ctx, `UPDATE `+s.relationships+` SET active = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MySQLStore) GetOption(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.DB.QueryRowContext(ctx, `SELECT option_value FROM `+s.options+` WHERE option_name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *MySQLStore) SetOption(ctx context.Context, name, value string) error {
	query := `INSERT INTO ` + s.options + ` (option_name, option_value, autoload) VALUES (?, ?, 'no')
			  ON DUPLICATE KEY UPDATE option_value = VALUES(option_value)`
	_, err := s.db.DB.ExecContext(ctx, query, name, value)
	return err
}

func (s *MySQLStore) DeleteOption(ctx context.Context, name string) error {
	_, err := s.db.DB.ExecContext(ctx, `DELETE FROM `+s.options+` WHERE option_name = ?`, name)
	return err
}

// SetOrderSyncStatus writes the status meta and, for failures, the JSON list
// of error messages. A successful run clears messages from earlier failures.
func (s *MySQLStore) SetOrderSyncStatus(ctx context.Context, orderID int64, status string, messages []string) error {
	return s.db.ExecTx(ctx, func(tx *sql.Tx) error {
		if err := s.upsertPostMeta(ctx, tx, orderID, metaSyncStatus, status); err != nil {
			return err
		}
		if status != SyncStatusFailed {
			_, err := tx.ExecContext(ctx, `DELETE FROM `+s.postmeta+` WHERE post_id = ? AND meta_key = ?`, orderID, metaSyncErrors)
			return err
		}
		if messages == nil {
			messages = []string{}
		}
		encoded, err := json.Marshal(messages)
		if err != nil {
			return err
		}
		return s.upsertPostMeta(ctx, tx, orderID, metaSyncErrors, string(encoded))
	})
}

func (s *MySQLStore) upsertPostMeta(ctx context.Context, tx *sql.Tx, postID int64, key, value string) error {
	var metaID int64
	err := tx.QueryRowContext(ctx,
		`SELECT meta_id FROM `+s.postmeta+` WHERE post_id = ? AND meta_key = ? LIMIT 1`, postID, key,
	).Scan(&metaID)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+s.postmeta+` (post_id, meta_key, meta_value) VALUES (?, ?, ?)`, postID, key, value)
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE `+s.postmeta+` SET meta_value = ? WHERE meta_id = ?`, value, metaID)
	}
	return err
}

func (s *MySQLStore) GetOrderSyncStatus(ctx context.Context, orderID int64) (*OrderSyncStatus, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM `+s.postmeta+` WHERE post_id = ? AND meta_key IN (?, ?)`,
		orderID, metaSyncStatus, metaSyncErrors)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	status := &OrderSyncStatus{OrderID: orderID, Status: SyncStatusNone}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case metaSyncStatus:
			status.Status = value
		case metaSyncErrors:
			if err := json.Unmarshal([]byte(value), &status.Errors); err != nil {
				status.Errors = []string{value}
			}
		}
	}
	return status, rows.Err()
}

// ListUnsyncedOrders returns orders in one of postStatuses that never received
// a sync status, oldest first.
func (s *MySQLStore) ListUnsyncedOrders(ctx context.Context, postStatuses []string, limit int) ([]int64, error) {
	if len(postStatuses) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(postStatuses)+2)
	args = append(args, metaSyncStatus)
	for _, st := range postStatuses {
		args = append(args, st)
	}
	args = append(args, limit)

	query := `SELECT p.ID FROM ` + s.posts + ` p
			  LEFT JOIN ` + s.postmeta + ` m ON m.post_id = p.ID AND m.meta_key = ?
			  WHERE p.post_type = 'shop_order' AND p.post_status IN (` + placeholders(len(postStatuses)) + `)
			  AND m.meta_id IS NULL ORDER BY p.ID LIMIT ?`

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *MySQLStore) CreateSyncHistory(ctx context.Context, history *SyncHistory) error {
	query := `INSERT INTO ` + s.history + ` (id, order_id, trigger_source, started_at, completed_at, created_ids, status, error_message)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB.ExecContext(ctx, query,
		history.ID,
		history.OrderID,
		history.Trigger,
		history.StartedAt,
		history.CompletedAt,
		nullJSON(history.CreatedIDs),
		history.Status,
		history.ErrorMessage,
	)

	return err
}

func (s *MySQLStore) UpdateSyncHistory(ctx context.Context, history *SyncHistory) error {
	query := `UPDATE ` + s.history + ` SET completed_at = ?, created_ids = ?, status = ?, error_message = ? WHERE id = ?`

	_, err := s.db.DB.ExecContext(ctx, query,
		history.CompletedAt,
		nullJSON(history.CreatedIDs),
		history.Status,
		history.ErrorMessage,
		history.ID,
	)

	return err
}

// GetSyncHistory lists runs newest first. orderID 0 lists runs of all orders.
func (s *MySQLStore) GetSyncHistory(ctx context.Context, orderID int64, limit, offset int) ([]*SyncHistory, error) {
	query := `SELECT id, order_id, trigger_source, started_at, completed_at, created_ids, status, error_message
			  FROM ` + s.history
	args := []interface{}{}
	if orderID > 0 {
		query += ` WHERE order_id = ?`
		args = append(args, orderID)
	}
	query += ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*SyncHistory
	for rows.Next() {
		var (
			h          SyncHistory
			createdIDs sql.NullString
		)
		err := rows.Scan(
			&h.ID,
			&h.OrderID,
			&h.Trigger,
			&h.StartedAt,
			&h.CompletedAt,
			&createdIDs,
			&h.Status,
			&h.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		if createdIDs.Valid {
			h.CreatedIDs = json.RawMessage(createdIDs.String)
		}
		history = append(history, &h)
	}

	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRelationship(row rowScanner) (*Relationship, error) {
	var (
		rel                  Relationship
		mappings             string
		fromLabel, toLabel   sql.NullString
		required, unique     sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	err := row.Scan(
		&rel.ID,
		&rel.HashKey,
		&mappings,
		&rel.FromObject,
		&fromLabel,
		&rel.ToObject,
		&toLabel,
		&required,
		&unique,
		&rel.Active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rel.FromObjectLabel = fromLabel.String
	rel.ToObjectLabel = toLabel.String
	rel.CreatedAt = createdAt.Time
	rel.UpdatedAt = updatedAt.Time

	if err := decodeJSONColumn(mappings, &rel.FieldMappings); err != nil {
		return nil, fmt.Errorf("%w %s: relationships: %v", ErrMalformedRelationship, rel.HashKey, err)
	}
	if err := decodeJSONColumn(required.String, &rel.RequiredObjects); err != nil {
		return nil, fmt.Errorf("%w %s: required_sf_objects: %v", ErrMalformedRelationship, rel.HashKey, err)
	}
	if err := decodeJSONColumn(unique.String, &rel.UniqueFields); err != nil {
		return nil, fmt.Errorf("%w %s: unique_sf_fields: %v", ErrMalformedRelationship, rel.HashKey, err)
	}
	return &rel, nil
}

// decodeJSONColumn treats an empty column as an empty list.
func decodeJSONColumn(raw string, dst interface{}) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func encodeRelationship(rel *Relationship) (mappings, required, unique string, err error) {
	if rel.FromObject == "" || rel.ToObject == "" || len(rel.FieldMappings) == 0 {
		return "", "", "", fmt.Errorf("%w: from, to and field mappings are required", ErrMalformedRelationship)
	}
	requiredObjects := rel.RequiredObjects
	if requiredObjects == nil {
		requiredObjects = []RequiredObject{}
	}
	uniqueFields := rel.UniqueFields
	if uniqueFields == nil {
		uniqueFields = []string{}
	}

	parts := make([]string, 0, 3)
	for _, v := range []interface{}{rel.FieldMappings, requiredObjects, uniqueFields} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", "", "", err
		}
		parts = append(parts, string(b))
	}
	return parts[0], parts[1], parts[2], nil
}

func inClause(ids []int64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders(len(ids)), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
