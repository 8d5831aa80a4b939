// Package types holds the wire envelopes shared by the API handlers and their
// clients. Every response body is either a SuccessEnvelope or an ErrorEnvelope.
package types

// SuccessEnvelope wraps a successful response payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the machine-readable error body. Details carries structured
// context such as per-product stock shortfalls and is omitted when empty.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for transport.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
