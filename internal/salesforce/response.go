package salesforce

import (
	"encoding/json"
	"fmt"
)

// Response is a decoded JSON body. The REST API answers with an object on
// success and with an array of error entries on failure; an empty Response
// stands for timeouts, transport errors and non-JSON bodies alike.
type Response struct {
	raw interface{}
}

func decodeResponse(body []byte) Response {
	var raw interface{}
	if len(body) == 0 || json.Unmarshal(body, &raw) != nil {
		return Response{}
	}
	return Response{raw: raw}
}

func (r Response) Empty() bool {
	switch v := r.raw.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}

func (r Response) Object() map[string]interface{} {
	m, _ := r.raw.(map[string]interface{})
	return m
}

func (r Response) String(key string) string {
	switch v := r.Object()[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Success reports the direct-create shape {"id": "...", "success": true}.
func (r Response) Success() bool {
	ok, _ := r.Object()["success"].(bool)
	return ok
}

func (r Response) ID() string {
	return r.String("id")
}

// Done reports the query shape {"done": true, "records": [...]}.
func (r Response) Done() bool {
	done, _ := r.Object()["done"].(bool)
	return done
}

func (r Response) Records() []map[string]interface{} {
	list, _ := r.Object()["records"].([]interface{})
	records := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]interface{}); ok {
			records = append(records, rec)
		}
	}
	return records
}

// FirstRecordID returns the Id of the first query record.
func (r Response) FirstRecordID() (string, bool) {
	if !r.Done() {
		return "", false
	}
	records := r.Records()
	if len(records) == 0 {
		return "", false
	}
	id, _ := records[0]["Id"].(string)
	return id, true
}

// FirstError returns the first structured error entry, or nil if the body is
// not an error array.
func (r Response) FirstError() *APIError {
	list, ok := r.raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}
	entry, ok := list[0].(map[string]interface{})
	if !ok {
		return nil
	}
	code, ok := entry["errorCode"].(string)
	if !ok {
		return nil
	}
	msg, _ := entry["message"].(string)
	return &APIError{Code: code, Message: msg}
}

// Err extracts the error to report for a failed call, defaulting to UNKNOWN
// when the body carries no code and message.
func (r Response) Err() *APIError {
	if e := r.FirstError(); e != nil && e.Code != "" && e.Message != "" {
		return e
	}
	return unknownError()
}

func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.raw)
}
