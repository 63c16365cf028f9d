package model

import "encoding/json"

// Envelope wraps every API response.  Exactly one of Data and Error is set,
// matching Success.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody carries a machine-readable code.  RetryAfter is set on 429s.
type ErrorBody struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RetryAfter int            `json:"retryAfter,omitempty"`
}

// OK builds a success envelope around data.
func OK(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

// Fail builds an error envelope.
func Fail(body ErrorBody) map[string]any {
	return map[string]any{"success": false, "error": body}
}
