package salesforce

import (
	"errors"
	"fmt"
)

// Error codes the object manager reacts to. Any other Salesforce code is
// passed through verbatim.
const (
	CodeUnknown                 = "UNKNOWN"
	CodeInvalidSession          = "INVALID_SESSION_ID"
	CodeDuplicateValue          = "DUPLICATE_VALUE"
	CodeFieldIntegrity          = "FIELD_INTEGRITY_EXCEPTION"
	CodeStandardPriceNotDefined = "STANDARD_PRICE_NOT_DEFINED"

	unknownMessage = "Unknown error occurred."
)

var (
	// ErrAccessToken is returned when the token endpoint answers without an access token.
	ErrAccessToken = errors.New("access_token_error")
	// ErrInstanceURL is returned when the token endpoint answers without an instance URL.
	ErrInstanceURL = errors.New("instance_url_error")
	// ErrMissingCredentials is returned when the consumer key or secret is not configured.
	ErrMissingCredentials = errors.New("consumer key and secret are required")
	// ErrInvalidState is returned when an OAuth callback does not carry the state of the pending authorization.
	ErrInvalidState = errors.New("oauth state mismatch")
)

// APIError is a structured error entry returned by the REST API.
type APIError struct {
	Code    string `json:"errorCode"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func unknownError() *APIError {
	return &APIError{Code: CodeUnknown, Message: unknownMessage}
}
