package apiserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/catenis-emulator/internal/signer"
)

// AuthenticateRequest parses and verifies the signing headers of a request
// against the installed credentials registry. A zero statusCode means
// success and deviceID is populated; otherwise statusCode/message is the
// response callers (including the WebSocket handshake) should surface.
//
// This is the capability the WSNotificationServer is injected with at
// construction — see spec.md's design note on self-referential wiring.
func (s *Server) AuthenticateRequest(headers signer.Headers, host, method, rawURL string, body []byte) (deviceID string, statusCode int, message string) {
	auth, err := signer.Parse(headers, time.Now())
	if err != nil {
		pe, ok := err.(*signer.ParseError)
		if !ok {
			return "", http.StatusInternalServerError, "Internal server error"
		}
		return "", pe.StatusCode(), pe.Message
	}

	secret, ok := s.credentials.Lookup(auth.DeviceID)
	if !ok {
		return "", http.StatusUnauthorized, "Authorization failed; invalid device or signature"
	}

	if !signer.Authenticate(auth, method, rawURL, host, body, secret) {
		return "", http.StatusUnauthorized, "Authorization failed; invalid device or signature"
	}

	return auth.DeviceID, 0, ""
}

// handleMatch is the single matcher every non-preflight, non-WebSocket
// request on this server goes through.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := s.httpCtx.Get()
	if ctx == nil {
		s.writeErrorEnvelope(w, r, http.StatusInternalServerError, "Missing HTTP context")
		return
	}

	if r.Method != ctx.ExpectedRequest.HTTPMethod {
		s.writeErrorEnvelope(w, r, http.StatusInternalServerError, fmt.Sprintf(
			"Unexpected HTTP method: expected %s, received %s", ctx.ExpectedRequest.HTTPMethod, r.Method))
		return
	}

	expectedURL, err := s.resolveExpectedURL(ctx.ExpectedRequest.APIMethodPath, r.Host)
	if err != nil {
		s.writeErrorEnvelope(w, r, http.StatusInternalServerError, fmt.Sprintf("Invalid installed apiMethodPath: %v", err))
		return
	}

	if r.URL.Path != expectedURL.Path {
		s.writeErrorEnvelope(w, r, http.StatusInternalServerError, fmt.Sprintf(
			"Unexpected HTTP request path: expected %s, received %s", expectedURL.Path, r.URL.Path))
		return
	}

	if !queryEquivalent(r.URL.Query(), expectedURL.Query()) {
		s.writeErrorEnvelope(w, r, http.StatusInternalServerError, fmt.Sprintf(
			"Unexpected HTTP request query: expected %s, received %s", expectedURL.RawQuery, r.URL.RawQuery))
		return
	}

	var body []byte
	if ctx.ExpectedRequest.Data != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			s.writeErrorEnvelope(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		if len(body) > 0 {
			contentType := r.Header.Get("Content-Type")
			if !strings.HasPrefix(contentType, "application/json") {
				s.writeErrorEnvelope(w, r, http.StatusInternalServerError, fmt.Sprintf(
					"Unexpected HTTP request content type: expected application/json, received %s", contentType))
				return
			}

			if body_ := string(body); body_ != *ctx.ExpectedRequest.Data {
				s.writeErrorEnvelope(w, r, http.StatusInternalServerError, fmt.Sprintf(
					"Unexpected HTTP request body: expected %s, received %s", *ctx.ExpectedRequest.Data, body_))
				return
			}
		}
	}

	if ctx.ExpectedRequest.RequiresAuthentication() {
		if _, status, msg := s.AuthenticateRequest(r.Header, r.Host, r.Method, r.URL.RequestURI(), body); status != 0 {
			s.writeErrorEnvelope(w, r, status, msg)
			return
		}
	}

	switch {
	case ctx.RequiredResponse == nil:
		s.writeEmptyOK(w, r)
	case ctx.RequiredResponse.IsError():
		s.writeErrorEnvelope(w, r, ctx.RequiredResponse.StatusCode, ctx.RequiredResponse.ErrorMessage)
	default:
		var parsed any
		if err := json.Unmarshal([]byte(ctx.RequiredResponse.Data), &parsed); err != nil {
			s.writeErrorEnvelope(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
		s.writeSuccessEnvelope(w, r, parsed)
	}
}

// resolveExpectedURL joins the installed apiMethodPath onto this server's
// API base path, on the arbitrary authority http://<host>, per spec.md
// §4.2's URL-resolution rule.
func (s *Server) resolveExpectedURL(apiMethodPath, host string) (*url.URL, error) {
	trimmed := strings.TrimPrefix(apiMethodPath, "/")
	return url.Parse("http://" + host + s.basePath + trimmed)
}

// queryEquivalent reports whether a and b have the same set of parameter
// names, each with the same multiset of values (order-insensitive).
func queryEquivalent(a, b url.Values) bool {
	if len(a) != len(b) {
		return false
	}
	for key, va := range a {
		vb, ok := b[key]
		if !ok || len(va) != len(vb) {
			return false
		}
		if len(va) == 1 {
			if va[0] != vb[0] {
				return false
			}
			continue
		}
		sa, sb := append([]string{}, va...), append([]string{}, vb...)
		sort.Strings(sa)
		sort.Strings(sb)
		for i := range sa {
			if sa[i] != sb[i] {
				return false
			}
		}
	}
	return true
}
