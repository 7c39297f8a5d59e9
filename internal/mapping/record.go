package mapping

import (
	"sort"
	"strings"
)

// Kind tags the store entity a relationship reads from.
type Kind int

const (
	KindOrder Kind = iota + 1
	KindOrderItem
)

func (k Kind) String() string {
	switch k {
	case KindOrder:
		return "Order"
	case KindOrderItem:
		return "Order Product"
	default:
		return "unknown"
	}
}

// ParseKind maps a relationship's from_object onto a Kind. Both labels the
// settings screen has used for line items are accepted.
func ParseKind(fromObject string) (Kind, bool) {
	switch strings.TrimSpace(fromObject) {
	case "Order":
		return KindOrder, true
	case "Order Product", "Order Item":
		return KindOrderItem, true
	default:
		return 0, false
	}
}

// SourceRecord is a materialized store entity the mapper reads fields from.
type SourceRecord interface {
	Kind() Kind
	PropertyKeys() []string
	Get(key string) interface{}
}

type fieldSet map[string]interface{}

func (f fieldSet) keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OrderRecord is a WooCommerce order: its post fields plus order meta with the
// leading underscore of each meta key removed.
type OrderRecord struct {
	ID     int64
	fields fieldSet
}

func NewOrderRecord(id int64, fields map[string]interface{}) *OrderRecord {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return &OrderRecord{ID: id, fields: fields}
}

func (r *OrderRecord) Kind() Kind                 { return KindOrder }
func (r *OrderRecord) PropertyKeys() []string     { return r.fields.keys() }
func (r *OrderRecord) Get(key string) interface{} { return r.fields[key] }

// OrderItemRecord is one line item of an order combined with the product it
// refers to. Position is the zero-based index of the item within the order.
type OrderItemRecord struct {
	OrderID   int64
	ItemID    int64
	ProductID int64
	Position  int
	fields    fieldSet
}

func NewOrderItemRecord(orderID, itemID, productID int64, position int, fields map[string]interface{}) *OrderItemRecord {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return &OrderItemRecord{OrderID: orderID, ItemID: itemID, ProductID: productID, Position: position, fields: fields}
}

func (r *OrderItemRecord) Kind() Kind                 { return KindOrderItem }
func (r *OrderItemRecord) PropertyKeys() []string     { return r.fields.keys() }
func (r *OrderItemRecord) Get(key string) interface{} { return r.fields[key] }
