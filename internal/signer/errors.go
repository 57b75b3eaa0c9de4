package signer

import "net/http"

// ErrorKind identifies why Parse rejected a request's signing headers.
type ErrorKind string

// The closed set of parse-error kinds spec.md §4.1 names. Each one maps to
// HTTP 401 when surfaced by an API handler — see ParseError.StatusCode.
const (
	KindMissingHeaders       ErrorKind = "missing_headers"
	KindMalformedTimestamp   ErrorKind = "malformed_timestamp"
	KindTimestampOutOfBounds ErrorKind = "timestamp_out_of_bounds"
	KindMalformedAuthHeader  ErrorKind = "malformed_auth_header"
	KindMalformedSignDate    ErrorKind = "malformed_sign_date"
	KindSignDateOutOfBounds  ErrorKind = "sign_date_out_of_bounds"
)

// ParseError reports why Parse could not extract a valid AuthData from a
// request's headers.
type ParseError struct {
	Kind    ErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status a caller should surface for this
// error. Every parse-error kind maps to 401: the request never reached the
// point of having a verifiable signature at all.
func (e *ParseError) StatusCode() int {
	return http.StatusUnauthorized
}

func newParseError(kind ErrorKind, message string) *ParseError {
	return &ParseError{Kind: kind, Message: message}
}
