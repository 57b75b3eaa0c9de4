package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"time"
)

// timestampWindow is the maximum allowed skew between x-bcot-timestamp and
// wall-clock time, in either direction.
const timestampWindow = 300 * time.Second

// signDateWindowDays is the width, in days, of the half-open interval
// [signDate, signDate+signDateWindowDays) the current UTC calendar day must
// fall within.
const signDateWindowDays = 7

// timestampLayout is the compact ISO-8601 basic-format UTC layout the
// x-bcot-timestamp header must match exactly: YYYYMMDDTHHMMSSZ.
const timestampLayout = "20060102T150405Z"

// signDateLayout is the YYYYMMDD layout the sign date embedded in the
// authorization header must match exactly.
const signDateLayout = "20060102"

// authHeaderPattern matches:
//
//	CTN1-HMAC-SHA256 Credential=<deviceId>/<signDate>/ctn1_request, Signature=<hex64>
//
// "Credential" and "Signature" match case-insensitively per spec.md §4.1;
// the algorithm name and the literal "ctn1_request" do not.
var authHeaderPattern = regexp.MustCompile(
	`^CTN1-HMAC-SHA256\s+(?i:Credential)=([A-Za-z0-9_]{20})/(\d{8})/ctn1_request,\s*(?i:Signature)=([0-9a-fA-F]{64})$`,
)

// Headers abstracts the header lookup Parse needs. http.Header satisfies it
// directly; the WebSocket auth handshake builds a small map-backed
// implementation from a decoded JSON frame.
type Headers interface {
	Get(key string) string
}

// HeaderMap is a Headers implementation backed by a plain map with exact,
// case-sensitive keys — used for the WebSocket auth frame, whose JSON keys
// are the literal lowercase header names spec.md §6 names.
type HeaderMap map[string]string

// Get implements Headers.
func (m HeaderMap) Get(key string) string {
	return m[key]
}

// AuthData is the parsed, validated content of a request's signing headers.
type AuthData struct {
	DeviceID  string
	SignDate  string // YYYYMMDD
	Timestamp string // verbatim x-bcot-timestamp value, used in canonicalization
	Signature string // hex64 signature the client presented
}

// Parse extracts and validates the timestamp and authorization headers of a
// request. now is the wall clock to validate against (Parse converts it to
// UTC); callers pass time.Now() in production and a fixed time in tests.
//
// Parse never consults the body or the Host header — those only matter once
// the caller recomputes the expected signature with Sign.
func Parse(h Headers, now time.Time) (*AuthData, error) {
	ts := h.Get("x-bcot-timestamp")
	auth := h.Get("authorization")
	if ts == "" || auth == "" {
		return nil, newParseError(KindMissingHeaders, "missing x-bcot-timestamp or authorization header")
	}

	parsedTS, err := time.Parse(timestampLayout, ts)
	if err != nil || parsedTS.Format(timestampLayout) != ts {
		return nil, newParseError(KindMalformedTimestamp, "x-bcot-timestamp is not a valid YYYYMMDDTHHMMSSZ timestamp")
	}

	delta := now.UTC().Sub(parsedTS)
	if delta < 0 {
		delta = -delta
	}
	if delta > timestampWindow {
		return nil, newParseError(KindTimestampOutOfBounds, "x-bcot-timestamp is outside the allowed 300s window")
	}

	m := authHeaderPattern.FindStringSubmatch(auth)
	if m == nil {
		return nil, newParseError(KindMalformedAuthHeader, "authorization header is not a valid CTN1-HMAC-SHA256 credential")
	}
	deviceID, signDate, signature := m[1], m[2], m[3]

	parsedSignDate, err := time.Parse(signDateLayout, signDate)
	if err != nil || parsedSignDate.Format(signDateLayout) != signDate {
		return nil, newParseError(KindMalformedSignDate, "sign date is not a valid YYYYMMDD date")
	}

	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	windowEnd := parsedSignDate.AddDate(0, 0, signDateWindowDays)
	if today.Before(parsedSignDate) || !today.Before(windowEnd) {
		return nil, newParseError(KindSignDateOutOfBounds, "sign date is outside the allowed 7-day window")
	}

	return &AuthData{
		DeviceID:  deviceID,
		SignDate:  signDate,
		Timestamp: ts,
		Signature: signature,
	}, nil
}

// Sign recomputes the expected CTN1-HMAC-SHA256 signature for a request.
//
// method, rawURL and host must be exactly what the client sent (rawURL is
// the request-line target, including any query string). body must be the
// exact bytes received on the wire, undecoded.
func Sign(method, rawURL, host, timestamp, signDate string, body []byte, apiAccessSecret string) string {
	bodyHash := sha256.Sum256(body)

	conformed := method + "\n" +
		rawURL + "\n" +
		"host:" + host + "\n" +
		"x-bcot-timestamp:" + timestamp + "\n" +
		hex.EncodeToString(bodyHash[:]) + "\n"

	conformedHash := sha256.Sum256([]byte(conformed))

	stringToSign := "CTN1-HMAC-SHA256\n" +
		timestamp + "\n" +
		signDate + "/ctn1_request\n" +
		hex.EncodeToString(conformedHash[:]) + "\n"

	dateKey := hmacSum([]byte("CTN1"+apiAccessSecret), []byte(signDate))
	signKey := hmacSum(dateKey, []byte("ctn1_request"))
	signature := hmacSum(signKey, []byte(stringToSign))

	return hex.EncodeToString(signature)
}

// Authenticate reports whether auth's signature matches the one Sign
// recomputes for the given request components and secret. The comparison
// is exact and case-sensitive, done in constant time to avoid leaking
// timing information about a partial match.
func Authenticate(auth *AuthData, method, rawURL, host string, body []byte, apiAccessSecret string) bool {
	expected := Sign(method, rawURL, host, auth.Timestamp, auth.SignDate, body, apiAccessSecret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(auth.Signature)) == 1
}

func hmacSum(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg) //nolint:errcheck // hmac.Write over an in-memory hash never errors
	return mac.Sum(nil)
}
