package wsnotify

import (
	"sync"
	"time"

	"github.com/nerrad567/catenis-emulator/internal/state"
)

// channelIndex routes notifications to open channels by deviceId and event
// name. The two-level map mirrors the shape of the lookup it serves.
type channelIndex struct {
	mu   sync.RWMutex
	byID map[string]map[state.EventName]map[*NotificationChannel]struct{}
}

func newChannelIndex() *channelIndex {
	return &channelIndex{byID: make(map[string]map[state.EventName]map[*NotificationChannel]struct{})}
}

func (idx *channelIndex) insert(deviceID string, event state.EventName, ch *NotificationChannel) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byEvent, ok := idx.byID[deviceID]
	if !ok {
		byEvent = make(map[state.EventName]map[*NotificationChannel]struct{})
		idx.byID[deviceID] = byEvent
	}
	set, ok := byEvent[event]
	if !ok {
		set = make(map[*NotificationChannel]struct{})
		byEvent[event] = set
	}
	set[ch] = struct{}{}
}

func (idx *channelIndex) remove(deviceID string, event state.EventName, ch *NotificationChannel) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byEvent, ok := idx.byID[deviceID]
	if !ok {
		return
	}
	set, ok := byEvent[event]
	if !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(byEvent, event)
	}
	if len(byEvent) == 0 {
		delete(idx.byID, deviceID)
	}
}

// snapshot returns the channels currently registered for (deviceID, event)
// as a stable slice, safe to iterate after releasing the lock.
func (idx *channelIndex) snapshot(deviceID string, event state.EventName) []*NotificationChannel {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	set, ok := idx.byID[deviceID][event]
	if !ok {
		return nil
	}
	out := make([]*NotificationChannel, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	return out
}

func (idx *channelIndex) all() []*NotificationChannel {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []*NotificationChannel
	for _, byEvent := range idx.byID {
		for _, set := range byEvent {
			for ch := range set {
				out = append(out, ch)
			}
		}
	}
	return out
}

// pendingDispatch guarantees at most one outstanding deferred-delivery timer
// per (deviceID, eventName) pair: a notify-context entry installed while a
// timer is already pending for the same pair simply rides the existing
// timer rather than stacking another one.
type pendingDispatch struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newPendingDispatch() *pendingDispatch {
	return &pendingDispatch{timers: make(map[string]*time.Timer)}
}

// schedule arms a timer for key unless one is already pending, in which
// case it is a no-op — the pending timer's eventual fire will pick up
// whatever entry is installed in the notify context at that time.
func (p *pendingDispatch) schedule(key string, after time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.timers[key]; exists {
		return
	}
	p.timers[key] = time.AfterFunc(after, func() {
		p.mu.Lock()
		delete(p.timers, key)
		p.mu.Unlock()
		fn()
	})
}

func (p *pendingDispatch) cancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, t := range p.timers {
		t.Stop()
		delete(p.timers, key)
	}
}

// autoDispatch is called whenever a notify-context entry is installed for
// (deviceID, event): it delivers immediately when no timeout is set, or
// arms a de-duplicated deferred delivery otherwise.
func (s *Server) autoDispatch(deviceID string, event state.EventName) {
	entry, ok := s.notify.Lookup(deviceID, event)
	if !ok {
		return
	}

	if entry.TimeoutMs <= 0 {
		s.deliver(deviceID, event, entry)
		return
	}

	key := dispatchKey(deviceID, event)
	s.pending.schedule(key, time.Duration(entry.TimeoutMs)*time.Millisecond, func() {
		current, ok := s.notify.Lookup(deviceID, event)
		if !ok {
			return
		}
		s.deliver(deviceID, event, current)
	})
}

func (s *Server) deliver(deviceID string, event state.EventName, entry state.NotifyEntry) {
	channels := s.index.snapshot(deviceID, event)
	if len(channels) == 0 {
		return
	}

	payload := []byte(entry.Data)
	for _, ch := range channels {
		if !ch.trySend(payload) {
			s.logger.Debug("notification dispatch skipped; channel not open", "device_id", deviceID, "event", event)
		}
	}
}
