package core

import "sort"

// Registry is the set of sessions admitted after login. Only the hub loop
// mutates it.
type Registry struct {
	sessions map[*Session]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Session]struct{})}
}

// Add inserts a session. Returns true if newly added.
func (r *Registry) Add(s *Session) bool {
	if _, exists := r.sessions[s]; exists {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

// Remove deletes a session. Returns true if it was present.
func (r *Registry) Remove(s *Session) bool {
	if _, exists := r.sessions[s]; !exists {
		return false
	}
	delete(r.sessions, s)
	return true
}

// ByIdentity returns the first session with the given identity, or nil.
func (r *Registry) ByIdentity(identity string) *Session {
	for _, s := range r.List() {
		if s.Identity == identity {
			return s
		}
	}
	return nil
}

// Has reports whether any session holds the given identity.
func (r *Registry) Has(identity string) bool {
	return r.ByIdentity(identity) != nil
}

// List returns all sessions ordered by display name, identity as tiebreak.
func (r *Registry) List() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// Broadcast sends an event to every session except the excluded one.
func (r *Registry) Broadcast(ev *Event, except *Session) {
	for s := range r.sessions {
		if s == except {
			continue
		}
		s.send(ev)
	}
}
