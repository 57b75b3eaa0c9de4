// Package apiserver implements the emulated Catenis REST surface.
//
// It holds the device credentials registry and the single installed
// HttpContext, and matches every incoming request against that context:
// method, path, query-set equivalence, body byte-equality and, when the
// expectation calls for it, request authentication. A WebSocket upgrade
// handler can be mounted on the same listening socket by injecting it at
// construction; Server exposes AuthenticateRequest so that handler (and any
// other caller) can reuse the exact same authentication logic.
//
// Thread Safety: Server and its methods are safe for concurrent use from
// multiple goroutines.
package apiserver
