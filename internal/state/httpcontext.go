package state

import (
	"encoding/json"
	"sync"
)

// ExpectedRequest is the request shape an installed HttpContext expects the
// client under test to send.
type ExpectedRequest struct {
	HTTPMethod    string `json:"httpMethod"`
	APIMethodPath string `json:"apiMethodPath"`

	// Data, when non-nil, is the exact raw JSON body bytes the incoming
	// request's body must match byte-for-byte.
	Data *string `json:"data,omitempty"`

	// Authenticate defaults to true when unset.
	Authenticate *bool `json:"authenticate,omitempty"`
}

// RequiresAuthentication reports whether the matcher must run
// authenticateRequest for this expectation.
func (r ExpectedRequest) RequiresAuthentication() bool {
	return r.Authenticate == nil || *r.Authenticate
}

// RequiredResponse is the response an installed HttpContext emits once the
// incoming request matches. StatusCode non-zero selects the error shape (and
// Data is then ignored); otherwise Data must be non-empty and selects the
// success shape.
type RequiredResponse struct {
	// Data is a JSON string that must parse to a non-null value; it becomes
	// the "data" field of the success envelope.
	Data string `json:"data,omitempty"`

	StatusCode   int    `json:"statusCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// IsError reports whether this response describes the error envelope shape.
func (r RequiredResponse) IsError() bool {
	return r.StatusCode != 0
}

// HttpContext is the single-shot HTTP expectation the test harness installs.
type HttpContext struct {
	ExpectedRequest  ExpectedRequest   `json:"expectedRequest"`
	RequiredResponse *RequiredResponse `json:"requiredResponse,omitempty"`
}

// validate checks the invariants spec.md §3 places on an HttpContext before
// it may be installed.
func (h *HttpContext) validate() error {
	switch h.ExpectedRequest.HTTPMethod {
	case "GET", "POST":
	default:
		return ErrInvalidHTTPMethod
	}
	if h.ExpectedRequest.APIMethodPath == "" {
		return ErrEmptyAPIMethodPath
	}
	if h.ExpectedRequest.Data != nil {
		if !isNonNullJSON(*h.ExpectedRequest.Data) {
			return ErrInvalidJSONData
		}
	}
	if h.RequiredResponse != nil {
		rr := h.RequiredResponse
		switch {
		case rr.IsError():
			if rr.ErrorMessage == "" {
				return ErrEmptyErrorMessage
			}
		case rr.Data != "":
			if !isNonNullJSON(rr.Data) {
				return ErrInvalidJSONData
			}
		default:
			return ErrInvalidRequiredResponse
		}
	}
	return nil
}

// isNonNullJSON reports whether s parses as JSON to a value other than null.
func isNonNullJSON(s string) bool {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return false
	}
	return v != nil
}

// HTTPContextCell holds the currently installed HttpContext, or none.
//
// Thread Safety: all methods are safe for concurrent use. Get returns a
// snapshot pointer that is never mutated after installation, so a reader
// holding it sees a consistent value for the whole request even if Set
// races in concurrently.
type HTTPContextCell struct {
	mu      sync.RWMutex
	current *HttpContext
}

// NewHTTPContextCell returns a cell with no HttpContext installed.
func NewHTTPContextCell() *HTTPContextCell {
	return &HTTPContextCell{}
}

// Set validates ctx and, on success, installs it atomically. A validation
// failure leaves the previously installed value untouched.
func (c *HTTPContextCell) Set(ctx *HttpContext) error {
	if err := ctx.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.current = ctx
	c.mu.Unlock()
	return nil
}

// Get returns the currently installed HttpContext, or nil if none has been
// installed yet.
func (c *HTTPContextCell) Get() *HttpContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}
