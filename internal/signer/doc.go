// Package signer implements the CTN1-HMAC-SHA256 request-signing scheme
// used to authenticate requests against the Catenis API emulator.
//
// A request carries three pieces of signing material: the x-bcot-timestamp
// header, the authorization header (a structured credential/signature pair),
// and the implicit Host header. Parse extracts and validates the first two;
// Sign takes the Host value together with the parsed data and recomputes the
// expected signature from the same canonical request form the real client
// used, so the caller can compare it against the one presented in the
// authorization header.
//
// The scheme is modeled on AWS SigV4-style derived-key HMAC chains (see
// crypto/hmac usage in other request-signing middleware in this codebase's
// lineage), adapted to the two-step date/request key derivation spec.md §4.1
// describes.
package signer
