// Package cmdserver implements the control-plane REST server the test
// harness drives to install credentials, the HttpContext and the
// NotifyContext on the data-plane components, and to trigger lifecycle
// operations (closing every open notification channel, reporting build
// info, and shutting the emulator down).
//
// It runs on its own listener, separate from the emulated Catenis API
// server, and writes directly into the same state cells the ApiServer and
// WSNotificationServer read from — see the ambient "context" singleton
// design note this repository carries from spec.md.
package cmdserver
