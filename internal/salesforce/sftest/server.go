// Package sftest provides an in-memory Salesforce org served over httptest
// for tests of the token manager, the object manager and the sync engine.
package sftest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"wc-salesforce-sync/internal/value"
)

const (
	APIVersion          = "v37.0"
	StandardPricebookID = "01s000000000STD"
)

// Record is a stored sobject.
type Record struct {
	Type   string
	ID     string
	Fields map[string]interface{}
}

// CreateHook can answer a create call instead of the org. Returning
// handled=false lets the org process the call normally.
type CreateHook func(objectType string, fields map[string]interface{}) (status int, body string, handled bool)

// Org is a fake Salesforce org. Zero-valued knobs mean "behave normally".
type Org struct {
	Server *httptest.Server

	mu      sync.Mutex
	records []*Record
	nextID  int

	// AccessToken is the token the data API accepts.
	AccessToken string
	// RefreshedToken is handed out by a successful refresh.
	RefreshedToken string
	// RefreshFails makes the refresh grant answer with an error.
	RefreshFails bool
	// RejectSessions makes the data API refuse every token, refreshed or not.
	RejectSessions bool
	// AuthCode is the only authorization code the token endpoint accepts.
	AuthCode string
	// OmitInstanceURL drops instance_url from token responses.
	OmitInstanceURL bool
	// RequirePricebook rejects Orders without Pricebook2Id.
	RequirePricebook bool
	// CreateHook intercepts create calls.
	CreateHook CreateHook

	Creates   int
	Queries   int
	Deletes   int
	Refreshes int
	Exchanges int
}

func NewOrg() *Org {
	o := &Org{
		AccessToken:    "token-1",
		RefreshedToken: "token-2",
		AuthCode:       "good-code",
	}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	return o
}

func (o *Org) Close() {
	o.Server.Close()
}

func (o *Org) URL() string {
	return o.Server.URL
}

// Seed stores a record without counting it as a create call.
func (o *Org) Seed(objectType string, fields map[string]interface{}) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.insert(objectType, fields).ID
}

// Records returns the stored records of objectType.
func (o *Org) Records(objectType string) []*Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*Record
	for _, r := range o.records {
		if r.Type == objectType {
			out = append(out, r)
		}
	}
	return out
}

// Calls returns the number of data API calls made so far.
func (o *Org) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Creates + o.Queries + o.Deletes
}

func (o *Org) insert(objectType string, fields map[string]interface{}) *Record {
	o.nextID++
	prefix := objectType
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	r := &Record{Type: objectType, ID: fmt.Sprintf("%s%012d", prefix, o.nextID), Fields: fields}
	o.records = append(o.records, r)
	return r
}

func (o *Org) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r.URL.Path == "/services/oauth2/token" {
		o.token(w, r)
		return
	}

	base := "/services/data/" + APIVersion + "/"
	if !strings.HasPrefix(r.URL.Path, base) {
		http.NotFound(w, r)
		return
	}
	if o.RejectSessions || r.Header.Get("Authorization") != "OAuth "+o.AccessToken {
		writeJSON(w, http.StatusUnauthorized, `[{"errorCode":"INVALID_SESSION_ID","message":"Session expired or invalid"}]`)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, base)
	switch {
	case path == "query" && r.Method == http.MethodGet:
		o.Queries++
		o.query(w, r.URL.Query().Get("q"))
	case path == "sobjects/" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, `{"sobjects":[{"name":"Account","label":"Account"},{"name":"Contact","label":"Contact"}]}`)
	case strings.HasSuffix(path, "/describe/") && r.Method == http.MethodGet:
		name := strings.TrimSuffix(strings.TrimPrefix(path, "sobjects/"), "/describe/")
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"name":%q,"fields":[{"name":"Id","type":"id"}]}`, name))
	case strings.HasPrefix(path, "sobjects/") && r.Method == http.MethodPost:
		o.Creates++
		o.create(w, r, strings.TrimPrefix(path, "sobjects/"))
	case strings.HasPrefix(path, "sobjects/") && r.Method == http.MethodDelete:
		o.Deletes++
		o.delete(w, strings.TrimPrefix(path, "sobjects/"))
	default:
		http.NotFound(w, r)
	}
}

func (o *Org) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_request"}`)
		return
	}

	var access string
	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		o.Refreshes++
		if o.RefreshFails {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"expired access/refresh token"}`)
			return
		}
		o.AccessToken = o.RefreshedToken
		access = o.AccessToken
	case "authorization_code":
		o.Exchanges++
		if r.PostForm.Get("code") != o.AuthCode {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"authentication failure"}`)
			return
		}
		access = o.AccessToken
	default:
		writeJSON(w, http.StatusBadRequest, `{"error":"unsupported_grant_type"}`)
		return
	}

	body := map[string]string{"access_token": access, "refresh_token": "refresh-1", "token_type": "Bearer"}
	if !o.OmitInstanceURL {
		body["instance_url"] = o.Server.URL
	}
	data, _ := json.Marshal(body)
	writeJSON(w, http.StatusOK, string(data))
}

func (o *Org) create(w http.ResponseWriter, r *http.Request, objectType string) {
	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, `[{"errorCode":"JSON_PARSER_ERROR","message":"malformed body"}]`)
		return
	}

	if o.CreateHook != nil {
		if status, body, handled := o.CreateHook(objectType, fields); handled {
			writeJSON(w, status, body)
			return
		}
	}
	if o.RequirePricebook && objectType == "Order" && value.IsEmpty(fields["Pricebook2Id"]) {
		writeJSON(w, http.StatusBadRequest, `[{"errorCode":"STANDARD_PRICE_NOT_DEFINED","message":"No standard price defined for this product"}]`)
		return
	}

	rec := o.insert(objectType, fields)
	writeJSON(w, http.StatusCreated, fmt.Sprintf(`{"id":%q,"success":true,"errors":[]}`, rec.ID))
}

func (o *Org) delete(w http.ResponseWriter, path string) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, `[{"errorCode":"NOT_FOUND","message":"The requested resource does not exist"}]`)
		return
	}
	for i, rec := range o.records {
		if rec.Type == parts[0] && rec.ID == parts[1] {
			o.records = append(o.records[:i], o.records[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, `[{"errorCode":"NOT_FOUND","message":"The requested resource does not exist"}]`)
}

// query understands "SELECT <fields> FROM <Type> [WHERE a=b AND c='d']".
func (o *Org) query(w http.ResponseWriter, soql string) {
	rest := soql[strings.Index(soql, " FROM ")+len(" FROM "):]
	objectType, where, _ := strings.Cut(rest, " WHERE ")

	if objectType == "Pricebook2" {
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"done":true,"totalSize":1,"records":[{"Id":%q}]}`, StandardPricebookID))
		return
	}

	conds := map[string]string{}
	if where != "" {
		for _, c := range strings.Split(where, " AND ") {
			k, v, _ := strings.Cut(c, "=")
			if strings.HasPrefix(v, "'") {
				v = strings.TrimSuffix(strings.TrimPrefix(v, "'"), "'")
				v = strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\\`, `\`, `\n`, "\n").Replace(v)
			}
			conds[k] = v
		}
	}

	records := []map[string]interface{}{}
	for _, rec := range o.records {
		if rec.Type != objectType || !matches(rec.Fields, conds) {
			continue
		}
		records = append(records, map[string]interface{}{"Id": rec.ID})
	}
	data, _ := json.Marshal(map[string]interface{}{"done": true, "totalSize": len(records), "records": records})
	writeJSON(w, http.StatusOK, string(data))
}

func matches(fields map[string]interface{}, conds map[string]string) bool {
	for k, want := range conds {
		if value.String(fields[k]) != want {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
