// Package rooms maintains the authoritative room membership sets.
//
// A room exists only while it has at least one member: it is created by the
// first Join and destroyed by the Leave that removes its last member. Each
// connection belongs to at most one room, tracked by a reverse index that is
// updated in the same critical section as the member sets, so disconnect
// cleanup never needs to scan every room.
package rooms

import (
	"cmp"
	"slices"
	"sync"
)

// LeaveResult describes the outcome of removing a connection from a room.
type LeaveResult struct {
	Room        string
	WasMember   bool
	RoomRemoved bool
}

// JoinResult describes the outcome of a Join.
type JoinResult struct {
	RoomCreated   bool
	AlreadyMember bool
	// Moved is set when the connection was taken out of a different room
	// as part of the join.
	Moved *LeaveResult
}

type room struct {
	seq     uint64
	members []string
	index   map[string]struct{}
}

// Directory maps room names to their members. It is safe for concurrent use;
// every operation is applied atomically with respect to the others.
type Directory struct {
	mu      sync.Mutex
	rooms   map[string]*room
	current map[string]string // connection id -> room name
	nextSeq uint64
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms:   make(map[string]*room),
		current: make(map[string]string),
	}
}

// Join adds id to name, creating the room if necessary. A connection that is
// already in another room is moved out of it first, within the same step.
func (d *Directory) Join(name, id string) JoinResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result JoinResult

	if prev, ok := d.current[id]; ok {
		if prev == name {
			result.AlreadyMember = true
			return result
		}
		left := d.removeLocked(prev, id)
		result.Moved = &left
	}

	r, ok := d.rooms[name]
	if !ok {
		d.nextSeq++
		r = &room{seq: d.nextSeq, index: make(map[string]struct{})}
		d.rooms[name] = r
		result.RoomCreated = true
	}

	r.members = append(r.members, id)
	r.index[id] = struct{}{}
	d.current[id] = name
	return result
}

// Leave removes id from name. Leaving a room the connection is not in, or a
// room that does not exist, is a no-op reported with WasMember false.
func (d *Directory) Leave(name, id string) LeaveResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current[id] != name {
		return LeaveResult{Room: name}
	}
	return d.removeLocked(name, id)
}

// LeaveAll removes id from every room it belongs to and reports each removal.
func (d *Directory) LeaveAll(id string) []LeaveResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, ok := d.current[id]
	if !ok {
		return nil
	}
	return []LeaveResult{d.removeLocked(name, id)}
}

// removeLocked assumes id is a member of name and d.mu is held.
func (d *Directory) removeLocked(name, id string) LeaveResult {
	result := LeaveResult{Room: name}

	r, ok := d.rooms[name]
	if !ok {
		delete(d.current, id)
		return result
	}
	if _, member := r.index[id]; !member {
		delete(d.current, id)
		return result
	}

	delete(r.index, id)
	if i := slices.Index(r.members, id); i >= 0 {
		r.members = slices.Delete(r.members, i, i+1)
	}
	delete(d.current, id)
	result.WasMember = true

	if len(r.members) == 0 {
		delete(d.rooms, name)
		result.RoomRemoved = true
	}
	return result
}

// Members returns the members of name in join order. An absent room yields
// an empty slice.
func (d *Directory) Members(name string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[name]
	if !ok {
		return []string{}
	}
	return slices.Clone(r.members)
}

// IsMember reports whether id currently belongs to name.
func (d *Directory) IsMember(name, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.current[id] == name && name != ""
}

// RoomOf returns the room id currently belongs to.
func (d *Directory) RoomOf(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, ok := d.current[id]
	return name, ok
}

// RoomNames returns the names of all live rooms in creation order.
func (d *Directory) RoomNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(d.rooms[a].seq, d.rooms[b].seq)
	})
	return names
}

// Len returns the number of live rooms.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.rooms)
}
