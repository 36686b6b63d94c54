package session

import "sync"

// registry is the single shared mapping from session id to record.
// All access goes through the mutex so readers never observe a record
// mid-mutation; Get and Snapshot return value copies. Records whose
// teardown has been claimed are treated as absent, so a lookup never
// sees a session whose processes are already being terminated.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Record
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Record)}
}

func (r *registry) put(rec *Record) {
	r.mu.Lock()
	r.sessions[rec.SessionID] = rec
	r.mu.Unlock()
}

func (r *registry) get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[id]
	if !ok || rec.deleting {
		return Record{}, false
	}
	return *rec, true
}

// claim marks the record as being torn down and returns it. Exactly one
// caller wins a race between explicit delete and the reaper; everyone
// else sees absent.
func (r *registry) claim(id string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok || rec.deleting {
		return nil, false
	}
	rec.deleting = true
	return rec, true
}

// remove drops the record from the map. Called as the final step of
// teardown, after processes are terminated and the workspace removed.
func (r *registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// touch advances LastActivity to now, never backwards.
func (r *registry) touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok || rec.deleting {
		return false
	}
	if t := nowFunc(); t.After(rec.LastActivity) {
		rec.LastActivity = t
	}
	return true
}

// snapshot returns value copies of all visible records, for the reaper
// and for shutdown to iterate without holding the lock.
func (r *registry) snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if rec.deleting {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
