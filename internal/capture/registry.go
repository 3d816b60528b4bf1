package capture

import "sync"

// Registry owns all SpeakerSessions for one voice connection, keyed by SSRC.
// Distinct-key operations never contend beyond the map lock; same-key
// operations are serialized by the session's own lane, not by the registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint32]*SpeakerSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint32]*SpeakerSession)}
}

// Get returns the session for ssrc, if one exists.
func (r *Registry) Get(ssrc uint32) (*SpeakerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[ssrc]
	return s, ok
}

// GetOrCreate returns the session for ssrc, creating it (and starting its
// lane) on first sight. created reports whether this call made the session.
func (r *Registry) GetOrCreate(ssrc uint32) (s *SpeakerSession, created bool) {
	r.mu.RLock()
	s, ok := r.sessions[ssrc]
	r.mu.RUnlock()
	if ok {
		return s, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[ssrc]; ok {
		return s, false
	}
	s = newSpeakerSession(ssrc)
	r.sessions[ssrc] = s
	return s, true
}

// Remove deletes the session for ssrc and stops its lane. Returns the
// removed session, if any.
func (r *Registry) Remove(ssrc uint32) (*SpeakerSession, bool) {
	r.mu.Lock()
	s, ok := r.sessions[ssrc]
	delete(r.sessions, ssrc)
	r.mu.Unlock()
	if ok {
		s.stop()
	}
	return s, ok
}

// ByUser returns every session currently associated with userID. Usually at
// most one, but a reconnecting client can briefly hold two SSRCs.
func (r *Registry) ByUser(userID string) []*SpeakerSession {
	if userID == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*SpeakerSession
	for _, s := range r.sessions {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear removes every session, stopping all lanes. Used when the voice
// connection for the guild ends.
func (r *Registry) Clear() []*SpeakerSession {
	r.mu.Lock()
	out := make([]*SpeakerSession, 0, len(r.sessions))
	for ssrc, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, ssrc)
	}
	r.mu.Unlock()
	for _, s := range out {
		s.stop()
	}
	return out
}
