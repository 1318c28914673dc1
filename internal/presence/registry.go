// Package presence tracks live connection identities and their online or
// offline status. It deliberately knows nothing about room membership.
package presence

import "sync"

// Status is the presence state of a connection.
type Status int

const (
	// Unknown is reported for identities the registry has never seen.
	Unknown Status = iota
	// Online means the connection's transport session is live.
	Online
	// Offline means the session ended. Offline ids are never reused.
	Offline
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Registry records the presence status of every connection seen by the
// coordinator. It is safe for concurrent use.
//
// Disconnected ids are kept as Offline entries and never evicted, so StatusOf
// keeps answering Offline for them. Ids are never reused, which means the
// map grows by one entry per connection over the life of the process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Status
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Status),
	}
}

// Register marks id as Online, overwriting any previous entry.
func (r *Registry) Register(id string) {
	r.mu.Lock()
	r.entries[id] = Online
	r.mu.Unlock()
}

// MarkOffline flips id to Offline. Unknown ids are ignored.
func (r *Registry) MarkOffline(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		r.entries[id] = Offline
	}
}

// StatusOf returns the status of id, or Unknown if it was never registered.
func (r *Registry) StatusOf(id string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.entries[id]
}

// Online returns a snapshot of all online connection ids in no particular order.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id, status := range r.entries {
		if status == Online {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns how many connections are online and offline.
func (r *Registry) Count() (online, offline int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, status := range r.entries {
		switch status {
		case Online:
			online++
		case Offline:
			offline++
		}
	}
	return online, offline
}
