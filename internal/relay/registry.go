package relay

import "sync"

// GlobalChannelName is the distinguished, permanent channel holding
// authenticated listener clients.
const GlobalChannelName = "re_globl"

// Registry holds the four concurrent tables described by the data
// model: userId->session, the live-session set, channel membership,
// and per-channel variables. A sync.RWMutex guards all four — readers
// snapshot under RLock and release before sending, the same pattern
// the rest of the pack's broadcast fan-out uses, so the registry never
// blocks dispatch for longer than a map copy.
type Registry struct {
	mu sync.RWMutex

	userIDToSession map[uint64]*Session
	sessionExists   map[*Session]struct{}
	channels        map[string]map[*Session]struct{}
	channelVars     map[string]map[string][]byte

	gate    gate
	pending []*Session
	pendMu  sync.Mutex
}

// NewRegistry constructs an empty registry with the global channel
// already present (it is permanent and never removed for emptiness).
func NewRegistry() *Registry {
	r := &Registry{
		userIDToSession: make(map[uint64]*Session),
		sessionExists:   make(map[*Session]struct{}),
		channels:        make(map[string]map[*Session]struct{}),
		channelVars:     make(map[string]map[string][]byte),
	}
	r.channels[GlobalChannelName] = make(map[*Session]struct{})
	return r
}

// EnterDispatch acquires a reader slot in the reclamation gate. Every
// frame, disconnect, or error callback must call this before touching
// the registry and ExitDispatch on every exit path.
func (r *Registry) EnterDispatch() { r.gate.enter() }

// ExitDispatch releases the reader slot acquired by EnterDispatch.
func (r *Registry) ExitDispatch() { r.gate.leave() }

// Admit registers a newly created session: inserts it into
// sessionExists, userIdToSession, and its channel's member set,
// creating the channel entry if this is its first member.
func (r *Registry) Admit(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionExists[s] = struct{}{}
	r.userIDToSession[s.UserID()] = s
	members, ok := r.channels[s.channelName]
	if !ok {
		members = make(map[*Session]struct{})
		r.channels[s.channelName] = members
	}
	members[s] = struct{}{}
}

// FindByUserID looks up a session by userId. The returned session may
// have gone invalid between the lookup and use; callers must recheck
// Valid() before relying on it.
func (r *Registry) FindByUserID(id uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.userIDToSession[id]
	return s, ok
}

// ChannelMembers returns a snapshot slice of the named channel's
// current members, taken under RLock and safe to range over after the
// lock is released.
func (r *Registry) ChannelMembers(name string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.channels[name]
	out := make([]*Session, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	return out
}

// AllSessions returns a snapshot slice of every live-or-pending session.
func (r *Registry) AllSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessionExists))
	for s := range r.sessionExists {
		out = append(out, s)
	}
	return out
}

// ChannelCensus returns a snapshot of channel name -> member count,
// with names and counts produced from one consistent locked pass so
// relay op 2's two wire blocks can never disagree in iteration order.
func (r *Registry) ChannelCensus() (names []string, counts []uint32) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names = make([]string, 0, len(r.channels))
	counts = make([]uint32, 0, len(r.channels))
	for name, members := range r.channels {
		names = append(names, name)
		counts = append(counts, uint32(len(members)))
	}
	return names, counts
}

// SetChannelVariable assigns channelVariables[channel][key] = value,
// creating the channel's variable map on first assignment.
func (r *Registry) SetChannelVariable(channel, key string, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vars, ok := r.channelVars[channel]
	if !ok {
		vars = make(map[string][]byte)
		r.channelVars[channel] = vars
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	vars[key] = stored
}

// GetChannelVariable returns channelVariables[channel][key] and
// whether it was present.
func (r *Registry) GetChannelVariable(channel, key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vars, ok := r.channelVars[channel]
	if !ok {
		return nil, false
	}
	v, ok := vars[key]
	return v, ok
}

// ClaimUserID reassigns s's userId to newID, evicting and returning
// whichever session currently occupies newID (nil if none). The
// eviction target is removed from userIdToSession but its own
// invalidation/reclamation is the caller's responsibility.
func (r *Registry) ClaimUserID(s *Session, newID uint64) (evicted *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if occupant, ok := r.userIDToSession[newID]; ok && occupant != s {
		evicted = occupant
		delete(r.userIDToSession, newID)
	}
	delete(r.userIDToSession, s.UserID())
	s.userID.Store(newID)
	r.userIDToSession[newID] = s
	return evicted
}

// Enqueue marks s invalid (idempotently) and schedules it for the next
// reclaim cycle. Returns false if s was already invalid, in which case
// the caller must not enqueue it again.
func (r *Registry) Enqueue(s *Session) bool {
	if !s.invalidate() {
		return false
	}
	r.pendMu.Lock()
	r.pending = append(r.pending, s)
	r.pendMu.Unlock()
	return true
}

// Reclaim drains the pending queue under the exclusive gate, removing
// each session from every table and, for non-global channels, removing
// the channel entry and its variable map once it becomes empty.
func (r *Registry) Reclaim() {
	r.pendMu.Lock()
	batch := r.pending
	r.pending = nil
	r.pendMu.Unlock()
	if len(batch) == 0 {
		return
	}
	r.gate.reclaim(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, s := range batch {
			delete(r.sessionExists, s)
			if cur, ok := r.userIDToSession[s.UserID()]; ok && cur == s {
				delete(r.userIDToSession, s.UserID())
			}
			members := r.channels[s.channelName]
			if members != nil {
				delete(members, s)
				if len(members) == 0 && s.channelName != GlobalChannelName {
					delete(r.channels, s.channelName)
					delete(r.channelVars, s.channelName)
				}
			}
		}
	})
}
