package woocommerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wc-salesforce-sync/internal/database"
	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/mapping"
	"wc-salesforce-sync/internal/value"
)

const (
	orderPostType = "shop_order"
	lineItemType  = "line_item"
	dateLayout    = "2006-01-02 15:04:05"
)

var ErrOrderNotFound = errors.New("order not found")

// Product meta that never feeds a mapping.
var skippedProductMeta = map[string]bool{
	"_edit_lock":             true,
	"_edit_last":             true,
	"_product_image_gallery": true,
	"_is_variable":           true,
}

// OrderSource reads orders and their line items straight from the WordPress
// tables.
type OrderSource struct {
	db       *database.Database
	posts    string
	postmeta string
	items    string
	itemmeta string
}

func NewOrderSource(db *database.Database) *OrderSource {
	return &OrderSource{
		db:       db,
		posts:    db.Table("posts"),
		postmeta: db.Table("postmeta"),
		items:    db.Table("woocommerce_order_items"),
		itemmeta: db.Table("woocommerce_order_itemmeta"),
	}
}

// LoadOrder builds the order record and one record per line item, in the
// order the items were added.
func (s *OrderSource) LoadOrder(ctx context.Context, orderID int64) (*mapping.OrderRecord, []*mapping.OrderItemRecord, error) {
	post, err := s.post(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if post.typ != orderPostType {
		return nil, nil, fmt.Errorf("%w: post %d is a %s", ErrOrderNotFound, orderID, post.typ)
	}

	fields, err := s.postMeta(ctx, orderID, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order meta: %w", err)
	}
	fields["customer_message"] = post.excerpt
	fields["order_date"] = post.date
	fields["modified_date"] = post.modified
	fields["order_type"] = "simple"
	fields["id"] = strconv.FormatInt(orderID, 10)
	fields["status"] = strings.TrimPrefix(post.status, "wc-")

	items, err := s.lineItems(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order items: %w", err)
	}

	logger.Log.Debug("Loaded order", zap.Int64("order_id", orderID), zap.Int("fields", len(fields)), zap.Int("items", len(items)))
	return mapping.NewOrderRecord(orderID, fields), items, nil
}

type postRow struct {
	typ      string
	status   string
	title    string
	content  string
	excerpt  string
	date     string
	modified string
}

func (s *OrderSource) post(ctx context.Context, postID int64) (*postRow, error) {
	var (
		p                 postRow
		created, modified sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT post_type, post_status, post_title, post_content, post_excerpt, post_date, post_modified
		 FROM `+s.posts+` WHERE ID = ?`, postID,
	).Scan(&p.typ, &p.status, &p.title, &p.content, &p.excerpt, &created, &modified)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, postID)
	}
	if err != nil {
		return nil, err
	}
	p.date = formatTime(created)
	p.modified = formatTime(modified)
	return &p, nil
}

// postMeta returns the meta of postID keyed without the leading underscore.
// Keys in skip are left out.
func (s *OrderSource) postMeta(ctx context.Context, postID int64, skip map[string]bool) (map[string]interface{}, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM `+s.postmeta+` WHERE post_id = ? ORDER BY meta_id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeta(rows, skip)
}

func (s *OrderSource) lineItems(ctx context.Context, orderID int64) ([]*mapping.OrderItemRecord, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT order_item_id, order_item_name FROM `+s.items+`
		 WHERE order_id = ? AND order_item_type = ? ORDER BY order_item_id`, orderID, lineItemType)
	if err != nil {
		return nil, err
	}

	type itemRow struct {
		id   int64
		name string
	}
	var itemRows []itemRow
	for rows.Next() {
		var r itemRow
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return nil, err
		}
		itemRows = append(itemRows, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	items := make([]*mapping.OrderItemRecord, 0, len(itemRows))
	for pos, r := range itemRows {
		item, err := s.lineItem(ctx, orderID, r.id, r.name, pos)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", r.id, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// lineItem merges the product's post fields and meta with the item meta.
// Product values win; item meta fills in what the product leaves empty.
func (s *OrderSource) lineItem(ctx context.Context, orderID, itemID int64, itemName string, pos int) (*mapping.OrderItemRecord, error) {
	itemMeta, err := s.itemMeta(ctx, itemID)
	if err != nil {
		return nil, err
	}

	productID, _ := strconv.ParseInt(value.String(itemMeta["product_id"]), 10, 64)
	fields := map[string]interface{}{"name": itemName}

	if productID > 0 {
		product, err := s.post(ctx, productID)
		switch {
		case errors.Is(err, ErrOrderNotFound):
			logger.Log.Warn("Ordered product no longer exists", zap.Int64("order_id", orderID), zap.Int64("product_id", productID))
		case err != nil:
			return nil, err
		default:
			fields["name"] = product.title
			fields["description"] = product.content
			fields["date"] = product.date

			meta, err := s.postMeta(ctx, productID, skippedProductMeta)
			if err != nil {
				return nil, err
			}
			for k, v := range meta {
				fields[k] = v
			}
		}
	}

	if value.IsEmpty(fields["sale_price"]) {
		fields["sale_price"] = fields["regular_price"]
	}
	for k, v := range itemMeta {
		if value.IsEmpty(fields[k]) {
			fields[k] = v
		}
	}
	return mapping.NewOrderItemRecord(orderID, itemID, productID, pos, fields), nil
}

func (s *OrderSource) itemMeta(ctx context.Context, itemID int64) (map[string]interface{}, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM `+s.itemmeta+` WHERE order_item_id = ? ORDER BY meta_id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeta(rows, nil)
}

func collectMeta(rows *sql.Rows, skip map[string]bool) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	for rows.Next() {
		var (
			key string
			val sql.NullString
		)
		if err := rows.Scan(&key, &val); err != nil {
			return nil, err
		}
		if skip[key] {
			continue
		}
		fields[MetaField(key)] = val.String
	}
	return fields, rows.Err()
}

// MetaField strips the leading underscore of a hidden meta key, so
// "_billing_email" is addressed as "billing_email". Other keys keep their
// name.
func MetaField(key string) string {
	return strings.TrimPrefix(key, "_")
}

func formatTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.In(time.UTC).Format(dateLayout)
}
