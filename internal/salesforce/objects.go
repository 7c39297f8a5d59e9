package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/value"
)

const pricebookField = "Pricebook2Id"

// Session is the part of the token manager the object manager needs.
type Session interface {
	InstanceURL() string
	Refresh(ctx context.Context) bool
}

// Result is the outcome of a create-or-find or lookup call.
type Result struct {
	Success      bool
	ID           string
	ErrorCode    string
	ErrorMessage string
}

func successResult(id string) Result {
	return Result{Success: true, ID: id}
}

func failureResult(err *APIError) Result {
	return Result{ErrorCode: err.Code, ErrorMessage: err.Message}
}

// Err returns the failure as an *APIError, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &APIError{Code: r.ErrorCode, Message: r.ErrorMessage}
}

// errorStatus classifies a response before it is interpreted.
type errorStatus int

const (
	statusNone errorStatus = iota
	statusFailed
	statusSolved
	statusDuplicate
	statusNoStandardPrice
)

// createState tracks how far a create call has gone through recovery.
// Recovery only happens from createInitial, so every create ends after at
// most one recovery step.
type createState int

const (
	createInitial createState = iota
	createPricebookInjected
	createTerminal
)

// ObjectManager makes Salesforce records exist without creating duplicates.
type ObjectManager struct {
	client     *Client
	session    Session
	apiVersion string
}

func NewObjectManager(client *Client, session Session, apiVersion string) *ObjectManager {
	return &ObjectManager{client: client, session: session, apiVersion: apiVersion}
}

func (m *ObjectManager) endpoint(path string) string {
	return m.session.InstanceURL() + "/services/data/" + m.apiVersion + "/" + path
}

func (m *ObjectManager) queryURL(soql string) string {
	return m.endpoint("query?q=" + url.QueryEscape(soql))
}

// CreateOrFind returns the ID of an existing record matching the non-empty
// unique fields of values, or creates a new record.
func (m *ObjectManager) CreateOrFind(ctx context.Context, objectType string, values map[string]interface{}, uniqueFields []string) Result {
	if found, ok := m.findExisting(ctx, objectType, values, uniqueFields); ok {
		return found
	}
	return m.create(ctx, objectType, values, uniqueFields)
}

func (m *ObjectManager) findExisting(ctx context.Context, objectType string, values map[string]interface{}, uniqueFields []string) (Result, bool) {
	subset := uniqueSubset(values, uniqueFields)
	if len(subset) == 0 {
		return Result{}, false
	}
	found := m.Lookup(ctx, objectType, subset)
	if !found.Success {
		return Result{}, false
	}
	// Existing orders get their items recreated by later relationships.
	if objectType == "Order" {
		m.deleteOrderItems(ctx, found.ID)
	}
	return found, true
}

func (m *ObjectManager) create(ctx context.Context, objectType string, values map[string]interface{}, uniqueFields []string) Result {
	var resp Response
	for state := createInitial; state != createTerminal; {
		body, err := json.Marshal(values)
		if err != nil {
			logger.Log.Error("Failed to encode Salesforce payload", zap.String("object", objectType), zap.Error(err))
			return failureResult(unknownError())
		}
		send := func() Response {
			return m.client.Send(ctx, m.endpoint("sobjects/"+objectType), true, http.MethodPost, string(body), "application/json")
		}

		resp = send()
		if state != createInitial {
			break
		}

		switch m.classify(ctx, resp) {
		case statusSolved:
			resp = send()
			state = createTerminal
		case statusDuplicate:
			logger.Log.Debug("Salesforce reported duplicate, looking up existing record", zap.String("object", objectType))
			return m.Lookup(ctx, objectType, values)
		case statusNoStandardPrice:
			values = withField(values, pricebookField, m.StandardPricebookID(ctx))
			// the record may have appeared since the first lookup
			if found, ok := m.findExisting(ctx, objectType, values, uniqueFields); ok {
				return found
			}
			state = createPricebookInjected
		default:
			state = createTerminal
		}
	}
	return interpret(resp)
}

// Lookup returns the ID of the first record of objectType whose fields equal
// values. Boolean values do not take part in the filter.
func (m *ObjectManager) Lookup(ctx context.Context, objectType string, values map[string]interface{}) Result {
	soql, ok := lookupQuery(objectType, values)
	if !ok {
		return failureResult(unknownError())
	}

	resp := m.client.Get(ctx, m.queryURL(soql))
	if id, ok := resp.FirstRecordID(); ok {
		return successResult(id)
	}
	return failureResult(resp.Err())
}

// classify inspects resp for a structured error. A session error is answered
// with one token refresh.
func (m *ObjectManager) classify(ctx context.Context, resp Response) errorStatus {
	if resp.Empty() {
		return statusFailed
	}

	apiErr := resp.FirstError()
	if apiErr == nil {
		return statusNone
	}

	switch apiErr.Code {
	case CodeInvalidSession:
		if m.session.Refresh(ctx) {
			return statusSolved
		}
		return statusFailed
	case CodeDuplicateValue, CodeFieldIntegrity:
		return statusDuplicate
	case CodeStandardPriceNotDefined:
		return statusNoStandardPrice
	default:
		return statusFailed
	}
}

func interpret(resp Response) Result {
	if resp.Success() {
		return successResult(resp.ID())
	}
	if id, ok := resp.FirstRecordID(); ok {
		return successResult(id)
	}
	return failureResult(resp.Err())
}

// fetch runs a read-only GET, retrying once after a session refresh. A retry
// that fails again is not retried.
func (m *ObjectManager) fetch(ctx context.Context, rawURL string) (Response, bool) {
	resp := m.client.Get(ctx, rawURL)
	switch m.classify(ctx, resp) {
	case statusSolved:
		resp = m.client.Get(ctx, rawURL)
		if resp.Empty() || resp.FirstError() != nil {
			return Response{}, false
		}
	case statusFailed:
		return Response{}, false
	}
	return resp, true
}

// StandardPricebookID returns the ID of the org's standard price book, or ""
// if it cannot be fetched.
func (m *ObjectManager) StandardPricebookID(ctx context.Context) string {
	resp, ok := m.fetch(ctx, m.queryURL("SELECT Id FROM Pricebook2 WHERE IsStandard=true"))
	if !ok {
		return ""
	}
	id, _ := resp.FirstRecordID()
	return id
}

// AllObjects returns the sobject catalog.
func (m *ObjectManager) AllObjects(ctx context.Context) (Response, bool) {
	return m.fetch(ctx, m.endpoint("sobjects/"))
}

// DescribeObject returns the field description of one sobject type.
func (m *ObjectManager) DescribeObject(ctx context.Context, name string) (Response, bool) {
	return m.fetch(ctx, m.endpoint("sobjects/"+url.PathEscape(name)+"/describe/"))
}

type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Code      string  `json:"code"`
	UnitPrice float64 `json:"unit_price"`
	IsActive  bool    `json:"is_active"`
}

// Products lists the products that have a price book entry, once each.
func (m *ObjectManager) Products(ctx context.Context) ([]Product, bool) {
	soql := "SELECT Product2.Id, Product2.Name, Product2.ProductCode, Product2.IsActive, UnitPrice FROM PricebookEntry"
	resp, ok := m.fetch(ctx, m.queryURL(soql))
	if !ok || !resp.Done() {
		return nil, false
	}

	seen := make(map[string]bool)
	var products []Product
	for _, rec := range resp.Records() {
		p, _ := rec["Product2"].(map[string]interface{})
		id, _ := p["Id"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		name, _ := p["Name"].(string)
		code, _ := p["ProductCode"].(string)
		active, _ := p["IsActive"].(bool)
		price, _ := rec["UnitPrice"].(float64)
		products = append(products, Product{ID: id, Name: name, Code: code, UnitPrice: price, IsActive: active})
	}
	return products, true
}

func (m *ObjectManager) deleteOrderItems(ctx context.Context, orderID string) {
	resp := m.client.Get(ctx, m.queryURL("SELECT Id FROM OrderItem WHERE OrderId='"+EscapeSOQL(orderID)+"'"))
	for _, rec := range resp.Records() {
		id, _ := rec["Id"].(string)
		if id == "" {
			continue
		}
		m.client.Send(ctx, m.endpoint("sobjects/OrderItem/"+url.PathEscape(id)), true, http.MethodDelete, "", "")
	}
	logger.Log.Debug("Deleted existing order items", zap.String("order", orderID), zap.Int("count", len(resp.Records())))
}

func uniqueSubset(values map[string]interface{}, uniqueFields []string) map[string]interface{} {
	subset := make(map[string]interface{})
	for _, f := range uniqueFields {
		if v, ok := values[f]; ok && !value.IsEmpty(v) {
			subset[f] = v
		}
	}
	return subset
}

func withField(values map[string]interface{}, key string, v interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values)+1)
	for k, val := range values {
		out[k] = val
	}
	out[key] = v
	return out
}
