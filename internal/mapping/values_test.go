package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wc-salesforce-sync/internal/store"
)

var fixedNow = time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)

func newTestMapper(mode string) *Mapper {
	m := NewMapper(mode)
	m.now = func() time.Time { return fixedNow }
	return m
}

func storeField(from, to, typ string) store.FieldMapping {
	return store.FieldMapping{Source: store.SourceStoreField, Type: typ, From: from, To: to}
}

func TestResolve_TypeChecks(t *testing.T) {
	record := NewOrderRecord(1001, map[string]interface{}{
		"prices_include_tax": "yes",
		"is_vat_exempt":      true,
		"order_total":        "19.99",
		"discount":           "n/a",
		"billing_phone":      "555-0100",
		"customer_id":        42,
	})
	mappings := []store.FieldMapping{
		storeField("prices_include_tax", "TaxIncluded__c", "boolean"),
		storeField("is_vat_exempt", "VatExempt__c", "boolean"),
		storeField("order_total", "Amount__c", "currency"),
		storeField("discount", "Discount__c", "double"),
		storeField("billing_phone", "Phone", "phone"),
		storeField("customer_id", "CustomerRef__c", "string"),
		storeField("missing", "Missing__c", "string"),
	}

	values := newTestMapper(EmailLegacy).Resolve(mappings, record)

	assert.Equal(t, map[string]interface{}{
		"VatExempt__c": true,
		"Amount__c":    "19.99",
		"Phone":        "555-0100",
	}, values)
}

func TestResolve_Dates(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"date kept", "2024-03-05", "2024-03-05"},
		{"time part cut", "2024-03-05 10:00:00", "2024-03-05"},
		{"unparseable", "yesterday", "2024-06-01"},
		{"invalid month", "2024-13-05 10:00:00", "2024-06-01"},
		{"missing", nil, "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := NewOrderRecord(1, map[string]interface{}{"order_date": tt.value})
			values := newTestMapper(EmailLegacy).Resolve([]store.FieldMapping{storeField("order_date", "EffectiveDate", "date")}, record)
			assert.Equal(t, tt.want, values["EffectiveDate"])
		})
	}
}

func TestResolve_LiteralSources(t *testing.T) {
	mappings := []store.FieldMapping{
		{Source: store.SourcePicklist, Type: "picklist", To: "Status", Value: "Draft"},
		{Source: store.SourceCustom, Type: "date", To: "EffectiveDate", Value: "current"},
		{Source: store.SourceCustom, Type: "date", To: "EndDate", Value: "2025-01-01"},
		{Source: store.SourceCustom, Type: "string", To: "Description", Value: ""},
		{Source: "unknown", Type: "string", To: "Ignored", Value: "x"},
	}

	values := newTestMapper(EmailLegacy).Resolve(mappings, NewOrderRecord(1, nil))

	assert.Equal(t, map[string]interface{}{
		"Status":        "Draft",
		"EffectiveDate": "2024-06-01",
		"EndDate":       "2025-01-01",
	}, values)
}

func TestResolve_ConcatenatesRepeatedDestination(t *testing.T) {
	record := NewOrderRecord(1, map[string]interface{}{
		"billing_address_1": "1 Main St",
		"billing_address_2": "",
		"billing_city":      "Springfield",
	})
	mappings := []store.FieldMapping{
		storeField("billing_address_1", "BillingStreet", "textarea"),
		storeField("billing_address_2", "BillingStreet", "textarea"),
		storeField("billing_city", "BillingStreet", "textarea"),
	}

	values := newTestMapper(EmailLegacy).Resolve(mappings, record)

	assert.Equal(t, "1 Main St, Springfield", values["BillingStreet"])
}

func TestResolve_DropsEmptyValues(t *testing.T) {
	record := NewOrderItemRecord(1, 2, 3, 0, map[string]interface{}{
		"qty":      "0",
		"subtotal": "",
		"name":     "Widget",
	})
	mappings := []store.FieldMapping{
		storeField("qty", "Quantity", "double"),
		storeField("subtotal", "UnitPrice", "currency"),
		storeField("name", "Description", "string"),
	}

	values := newTestMapper(EmailLegacy).Resolve(mappings, record)

	assert.Equal(t, map[string]interface{}{"Description": "Widget"}, values)
}

// The legacy check drops values that validate as email addresses and keeps
// the rest.
func TestResolve_EmailLegacy(t *testing.T) {
	record := NewOrderRecord(1, map[string]interface{}{
		"billing_email": "a@b.com",
		"notes":         "not-an-email",
	})
	mappings := []store.FieldMapping{
		storeField("billing_email", "Email", "email"),
		storeField("notes", "Alt_Email__c", "email"),
	}

	values := newTestMapper(EmailLegacy).Resolve(mappings, record)

	assert.NotContains(t, values, "Email")
	assert.Equal(t, "not-an-email", values["Alt_Email__c"])
}

func TestResolve_EmailStrict(t *testing.T) {
	record := NewOrderRecord(1, map[string]interface{}{
		"billing_email": "a@b.com",
		"notes":         "not-an-email",
	})
	mappings := []store.FieldMapping{
		storeField("billing_email", "Email", "email"),
		storeField("notes", "Alt_Email__c", "email"),
	}

	values := newTestMapper(EmailStrict).Resolve(mappings, record)

	assert.Equal(t, "a@b.com", values["Email"])
	assert.NotContains(t, values, "Alt_Email__c")
}

func TestNewMapper_UnknownModeFallsBackToLegacy(t *testing.T) {
	assert.Equal(t, EmailLegacy, NewMapper("bogus").emailMode)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Order")
	assert.True(t, ok)
	assert.Equal(t, KindOrder, k)

	k, ok = ParseKind("Order Product")
	assert.True(t, ok)
	assert.Equal(t, KindOrderItem, k)

	_, ok = ParseKind("Customer")
	assert.False(t, ok)
}

func TestRecords(t *testing.T) {
	item := NewOrderItemRecord(10, 20, 30, 1, map[string]interface{}{"qty": "2", "name": "Widget"})

	assert.Equal(t, KindOrderItem, item.Kind())
	assert.Equal(t, []string{"name", "qty"}, item.PropertyKeys())
	assert.Equal(t, "2", item.Get("qty"))
	assert.Nil(t, item.Get("missing"))
}
