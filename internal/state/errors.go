package state

import "errors"

// Domain errors for the state package. Check with errors.Is.
var (
	// ErrEmptyDeviceID is returned when a credentials entry has no deviceId.
	ErrEmptyDeviceID = errors.New("state: device id must not be empty")

	// ErrInvalidHTTPMethod is returned when an expected request's method is
	// neither GET nor POST.
	ErrInvalidHTTPMethod = errors.New("state: http method must be GET or POST")

	// ErrEmptyAPIMethodPath is returned when an expected request has no path.
	ErrEmptyAPIMethodPath = errors.New("state: apiMethodPath must not be empty")

	// ErrInvalidJSONData is returned when a data field is not a JSON string
	// that parses to a non-null value.
	ErrInvalidJSONData = errors.New("state: data must parse to a non-null JSON value")

	// ErrInvalidRequiredResponse is returned when a requiredResponse carries
	// neither a success payload nor an error payload.
	ErrInvalidRequiredResponse = errors.New("state: requiredResponse must set either data or statusCode/errorMessage")

	// ErrEmptyErrorMessage is returned when an error response has a status
	// code but no message.
	ErrEmptyErrorMessage = errors.New("state: errorMessage must not be empty")

	// ErrInvalidEventName is returned when an eventName is outside the
	// closed set the emulator recognises.
	ErrInvalidEventName = errors.New("state: eventName is not a recognised event")

	// ErrInvalidTimeout is returned when a notify entry's timeout is negative.
	ErrInvalidTimeout = errors.New("state: timeout must not be negative")
)
