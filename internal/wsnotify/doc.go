// Package wsnotify implements the WebSocket notification subsystem: the
// upgrade handler, the per-connection authentication/heartbeat state
// machine, the (deviceId, eventName) routing index, and the deferred
// dispatch scheduler that delivers installed notification payloads.
//
// A Server is constructed with an Authenticator — the capability the
// ApiServer exposes for request authentication — so this package never
// imports apiserver directly and there is no import cycle between the two
// data-plane components (see the self-referential-wiring design note this
// package implements).
package wsnotify
