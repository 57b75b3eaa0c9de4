// Package state holds the emulator's installable, swappable state: the
// device credentials registry, the single-shot HTTP expectation, and the
// notification context consulted when a WebSocket channel authenticates.
//
// Each piece of state lives in its own cell guarded by a sync.RWMutex, the
// same cache-with-mutex shape device.Registry uses elsewhere in this
// codebase's lineage. A cell's Set validates the incoming value and then
// swaps it in atomically; a cell's Get returns a snapshot that is safe to
// read without holding any lock, so an in-flight request that started
// reading the old value never observes a partially-installed new one.
package state
