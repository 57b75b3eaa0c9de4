package state

import "sync"

// NotifyEntry is the payload delivered to channels subscribed to a
// (deviceId, eventName) pair once a matching channel authenticates.
type NotifyEntry struct {
	Data string `json:"data"`

	// TimeoutMs, when greater than zero, delays delivery by that many
	// milliseconds and de-duplicates concurrent triggers for the same pair.
	TimeoutMs int `json:"timeout,omitempty"`
}

func (e NotifyEntry) validate() error {
	if !isNonNullJSON(e.Data) {
		return ErrInvalidJSONData
	}
	if e.TimeoutMs < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// NotifyContext is the two-level deviceId -> eventName -> NotifyEntry table
// installed by the control plane.
type NotifyContext map[string]map[EventName]NotifyEntry

func (nc NotifyContext) validate() error {
	for _, byEvent := range nc {
		for event, entry := range byEvent {
			if !IsValidEventName(event) {
				return ErrInvalidEventName
			}
			if err := entry.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// NotifyContextCell holds the currently installed NotifyContext.
//
// Thread Safety: all methods are safe for concurrent use. Lookup and
// Snapshot read from an immutable map installed by the most recent Set, so
// no lock is held while a caller works with the returned value.
type NotifyContextCell struct {
	mu      sync.RWMutex
	current NotifyContext
}

// NewNotifyContextCell returns a cell with an empty NotifyContext installed.
func NewNotifyContextCell() *NotifyContextCell {
	return &NotifyContextCell{current: NotifyContext{}}
}

// Set validates nc and, on success, installs it atomically.
func (c *NotifyContextCell) Set(nc NotifyContext) error {
	if err := nc.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.current = nc
	c.mu.Unlock()
	return nil
}

// Lookup returns the entry installed for (deviceID, event), if any.
func (c *NotifyContextCell) Lookup(deviceID string, event EventName) (NotifyEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byEvent, ok := c.current[deviceID]
	if !ok {
		return NotifyEntry{}, false
	}
	entry, ok := byEvent[event]
	return entry, ok
}

// Snapshot returns the currently installed NotifyContext.
func (c *NotifyContextCell) Snapshot() NotifyContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}
