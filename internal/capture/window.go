package capture

import "sync"

// windowCapacity bounds the recency queue of speakers waiting for a
// transcriber slot.
const windowCapacity = 10

// ActiveSpeakerWindow is a small, capacity-bounded ordered queue of recently
// active speakers waiting for a transcriber slot. Insertion evicts the
// oldest entry when full. Safe for concurrent use.
type ActiveSpeakerWindow struct {
	mu      sync.Mutex
	cap     int
	entries []string // oldest first
}

// NewActiveSpeakerWindow creates a window with the given capacity.
// Capacities below one are clamped to one.
func NewActiveSpeakerWindow(capacity int) *ActiveSpeakerWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &ActiveSpeakerWindow{cap: capacity}
}

// Add appends userID to the window. If the user is already queued this is a
// no-op. When the window is full the oldest entry is evicted and returned.
func (w *ActiveSpeakerWindow) Add(userID string) (evicted string, didEvict bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.entries {
		if e == userID {
			return "", false
		}
	}
	if len(w.entries) >= w.cap {
		evicted = w.entries[0]
		didEvict = true
		w.entries = w.entries[1:]
	}
	w.entries = append(w.entries, userID)
	return evicted, didEvict
}

// PopOldest removes and returns the oldest queued speaker.
func (w *ActiveSpeakerWindow) PopOldest() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.entries) == 0 {
		return "", false
	}
	oldest := w.entries[0]
	w.entries = w.entries[1:]
	return oldest, true
}

// Remove deletes userID from the window, if present.
func (w *ActiveSpeakerWindow) Remove(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entries {
		if e == userID {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of queued speakers.
func (w *ActiveSpeakerWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
