package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Machine-readable codes the API attaches to 401 responses.
const (
	CodeTokenNotValid = "token_not_valid"
	CodeUserInactive  = "user_inactive"
	CodeUserBlocked   = "user_blocked"
)

// ErrLoggedOut is returned for calls issued after the session was force-closed.
var ErrLoggedOut = errors.New("session terminated")

// APIError is the decoded error envelope of a non-2xx response. 401 responses
// carry Code and Detail; validation failures carry a field -> messages map.
type APIError struct {
	Status int
	Code   string
	Detail string
	Fields map[string][]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.FirstMessage())
}

// FirstMessage returns the first structured message of the envelope, or a
// generic fallback. Field iteration is sorted so the surfaced message is
// deterministic.
func (e *APIError) FirstMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.Fields[k]) > 0 {
			return e.Fields[k][0]
		}
	}
	return "Something went wrong. Please try again."
}

// IsTokenExpired reports whether err is the recoverable expired-credential case.
func IsTokenExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.Status == http.StatusUnauthorized &&
		apiErr.Code == CodeTokenNotValid
}

// IsAccountDisabled reports whether err signals a blocked or inactive account.
// These are fatal to the session and force logout.
func IsAccountDisabled(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeUserBlocked || apiErr.Code == CodeUserInactive
}

// IsValidation reports whether err carries field-level validation messages.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && len(apiErr.Fields) > 0
}

// decodeError builds an APIError from a response body. Unrecognised bodies
// still produce an APIError carrying the status code.
func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && (envelope.Detail != "" || envelope.Code != "") {
		apiErr.Detail = envelope.Detail
		apiErr.Code = envelope.Code
		return apiErr
	}

	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		apiErr.Fields = fields
	}
	return apiErr
}
