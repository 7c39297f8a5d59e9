package salesforce

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wc-salesforce-sync/internal/salesforce/sftest"
)

func TestCreateOrFind_Idempotent(t *testing.T) {
	h := newHarness(t, "token-1")
	ctx := context.Background()
	values := map[string]interface{}{"LastName": "Doe", "Email": "jane@example.com"}

	first := h.objects.CreateOrFind(ctx, "Contact", values, []string{"Email"})
	require.True(t, first.Success)
	require.NotEmpty(t, first.ID)

	second := h.objects.CreateOrFind(ctx, "Contact", values, []string{"Email"})
	require.True(t, second.Success)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.org.Creates)
	assert.Len(t, h.org.Records("Contact"), 1)
}

func TestCreateOrFind_EmptyUniqueFieldsSkipLookup(t *testing.T) {
	h := newHarness(t, "token-1")

	res := h.objects.CreateOrFind(context.Background(), "Account", map[string]interface{}{"Name": "Acme", "Site": ""}, []string{"Site"})

	require.True(t, res.Success)
	assert.Equal(t, 0, h.org.Queries)
	assert.Equal(t, 1, h.org.Creates)
}

func TestCreate_InvalidSessionRefreshesAndRetries(t *testing.T) {
	h := newHarness(t, "expired")

	res := h.objects.CreateOrFind(context.Background(), "Account", map[string]interface{}{"Name": "Acme"}, nil)

	require.True(t, res.Success)
	assert.Equal(t, 1, h.org.Refreshes)
	assert.Equal(t, 2, h.org.Creates)
	assert.Equal(t, "token-2", h.tokens.AccessToken())
	assert.Equal(t, "token-2", h.secrets.values[OptionAccessToken])
}

func TestCreate_RefreshFailureReturnsSessionError(t *testing.T) {
	h := newHarness(t, "expired")
	h.org.RefreshFails = true

	res := h.objects.CreateOrFind(context.Background(), "Account", map[string]interface{}{"Name": "Acme"}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, CodeInvalidSession, res.ErrorCode)
	assert.Equal(t, "Session expired or invalid", res.ErrorMessage)
	assert.Equal(t, 1, h.org.Creates)
	assert.Equal(t, "expired", h.tokens.AccessToken())
	assert.Equal(t, "expired", h.secrets.values[OptionAccessToken])
}

func TestCreate_DuplicateFallsBackToLookup(t *testing.T) {
	h := newHarness(t, "token-1")
	existing := h.org.Seed("Contact", map[string]interface{}{"LastName": "Doe", "Email": "jane@example.com"})
	h.org.CreateHook = func(objectType string, _ map[string]interface{}) (int, string, bool) {
		return http.StatusBadRequest, `[{"errorCode":"DUPLICATE_VALUE","message":"duplicate value found"}]`, true
	}

	res := h.objects.CreateOrFind(context.Background(), "Contact", map[string]interface{}{"LastName": "Doe", "Email": "jane@example.com"}, nil)

	require.True(t, res.Success)
	assert.Equal(t, existing, res.ID)
	assert.Equal(t, 1, h.org.Creates)
}

func TestCreate_StandardPriceInjectsPricebook(t *testing.T) {
	h := newHarness(t, "token-1")
	h.org.RequirePricebook = true

	res := h.objects.CreateOrFind(context.Background(), "Order", map[string]interface{}{"AccountId": "001000000000001", "Status": "Draft"}, nil)

	require.True(t, res.Success)
	assert.Equal(t, 2, h.org.Creates)
	orders := h.org.Records("Order")
	require.Len(t, orders, 1)
	assert.Equal(t, sftest.StandardPricebookID, orders[0].Fields["Pricebook2Id"])
}

func TestCreate_StandardPriceLooksUpAgainBeforeRetry(t *testing.T) {
	h := newHarness(t, "token-1")
	h.org.RequirePricebook = true

	res := h.objects.CreateOrFind(context.Background(), "Order", map[string]interface{}{"OrderReferenceNumber": "1001", "Status": "Draft"}, []string{"OrderReferenceNumber"})

	require.True(t, res.Success)
	// unique lookup, price book query, unique lookup again
	assert.Equal(t, 3, h.org.Queries)
	assert.Equal(t, 2, h.org.Creates)
	assert.Len(t, h.org.Records("Order"), 1)
}

func TestCreate_StandardPriceRecoversOnlyOnce(t *testing.T) {
	h := newHarness(t, "token-1")
	h.org.CreateHook = func(string, map[string]interface{}) (int, string, bool) {
		return http.StatusBadRequest, `[{"errorCode":"STANDARD_PRICE_NOT_DEFINED","message":"No standard price defined"}]`, true
	}

	res := h.objects.CreateOrFind(context.Background(), "Order", map[string]interface{}{"Status": "Draft"}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, CodeStandardPriceNotDefined, res.ErrorCode)
	assert.Equal(t, 2, h.org.Creates)
}

func TestCreateOrFind_ExistingOrderDropsItems(t *testing.T) {
	h := newHarness(t, "token-1")
	orderID := h.org.Seed("Order", map[string]interface{}{"OrderReferenceNumber": "1001"})
	h.org.Seed("OrderItem", map[string]interface{}{"OrderId": orderID, "Quantity": 1})
	h.org.Seed("OrderItem", map[string]interface{}{"OrderId": orderID, "Quantity": 2})
	h.org.Seed("OrderItem", map[string]interface{}{"OrderId": "801000000000999", "Quantity": 5})

	res := h.objects.CreateOrFind(context.Background(), "Order", map[string]interface{}{"OrderReferenceNumber": "1001", "Status": "Draft"}, []string{"OrderReferenceNumber"})

	require.True(t, res.Success)
	assert.Equal(t, orderID, res.ID)
	assert.Equal(t, 0, h.org.Creates)
	assert.Equal(t, 2, h.org.Deletes)
	assert.Len(t, h.org.Records("OrderItem"), 1)
}

func TestCreate_ErrorPassthrough(t *testing.T) {
	h := newHarness(t, "token-1")
	h.org.CreateHook = func(string, map[string]interface{}) (int, string, bool) {
		return http.StatusBadRequest, `[{"errorCode":"REQUIRED_FIELD_MISSING","message":"Required fields are missing: [LastName]"}]`, true
	}

	res := h.objects.CreateOrFind(context.Background(), "Contact", map[string]interface{}{"FirstName": "Jane"}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", res.ErrorCode)
	assert.Equal(t, "Required fields are missing: [LastName]", res.ErrorMessage)
	assert.EqualError(t, res.Err(), "REQUIRED_FIELD_MISSING: Required fields are missing: [LastName]")
}

func TestCreate_EmptyBodyIsUnknown(t *testing.T) {
	h := newHarness(t, "token-1")
	h.org.CreateHook = func(string, map[string]interface{}) (int, string, bool) {
		return http.StatusInternalServerError, "", true
	}

	res := h.objects.CreateOrFind(context.Background(), "Contact", map[string]interface{}{"LastName": "Doe"}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, CodeUnknown, res.ErrorCode)
	assert.Equal(t, "Unknown error occurred.", res.ErrorMessage)
	assert.Equal(t, 1, h.org.Creates)
}

func TestLookup_NoFilterableFields(t *testing.T) {
	h := newHarness(t, "token-1")

	res := h.objects.Lookup(context.Background(), "Contact", map[string]interface{}{"HasOptedOutOfEmail": true})

	assert.False(t, res.Success)
	assert.Equal(t, CodeUnknown, res.ErrorCode)
	assert.Equal(t, 0, h.org.Calls())
}

func TestLookup_QuotesStrings(t *testing.T) {
	h := newHarness(t, "token-1")
	id := h.org.Seed("Account", map[string]interface{}{"Name": "O'Reilly Media", "NumberOfEmployees": 42})

	res := h.objects.Lookup(context.Background(), "Account", map[string]interface{}{"Name": "O'Reilly Media", "NumberOfEmployees": 42})

	require.True(t, res.Success)
	assert.Equal(t, id, res.ID)
}

func TestMetadataFetches(t *testing.T) {
	h := newHarness(t, "expired")
	ctx := context.Background()

	resp, ok := h.objects.AllObjects(ctx)
	require.True(t, ok)
	assert.Contains(t, resp.Object(), "sobjects")
	assert.Equal(t, 1, h.org.Refreshes)

	resp, ok = h.objects.DescribeObject(ctx, "Contact")
	require.True(t, ok)
	assert.Equal(t, "Contact", resp.String("name"))

	assert.Equal(t, sftest.StandardPricebookID, h.objects.StandardPricebookID(ctx))
}

func TestMetadataFetches_SessionRejectedAfterRefresh(t *testing.T) {
	h := newHarness(t, "expired")
	h.org.RejectSessions = true
	ctx := context.Background()

	resp, ok := h.objects.AllObjects(ctx)
	assert.False(t, ok)
	assert.True(t, resp.Empty())
	assert.Equal(t, 1, h.org.Refreshes)

	_, ok = h.objects.DescribeObject(ctx, "Contact")
	assert.False(t, ok)

	assert.Empty(t, h.objects.StandardPricebookID(ctx))

	_, ok = h.objects.Products(ctx)
	assert.False(t, ok)
}
