// Package broadcast delivers named events to computed sets of connections.
//
// Delivery is fire-and-forget: the broadcaster snapshots its targets before
// sending, a failing peer is logged and skipped, and no acknowledgment is
// tracked. Peers must not block in Send: deliveries run on the sender's
// session worker, and joins and leaves deliver while holding the
// coordinator's ordering lock, so one blocking peer stalls every membership
// change. A peer that cannot accept an event right away returns an error.
package broadcast

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Outbound event names.
const (
	EventMessage       = "message"
	EventRoomList      = "roomList"
	EventRoomCreated   = "roomCreated"
	EventRoomRemoved   = "roomRemoved"
	EventUserList      = "userList"
	EventUserJoined    = "userJoined"
	EventUserLeft      = "userLeft"
	EventSystemMessage = "systemMessage"
	EventWelcome       = "welcome"
)

// ErrNoPeer is returned by ToCaller when the connection has no attached peer.
var ErrNoPeer = errors.New("broadcast: no peer attached")

// Event is a named payload sent to a connection.
type Event struct {
	Name    string
	Payload any
}

// ChatMessage is the payload of a message event.
type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// Peer is the delivery endpoint of one connection. Send must not block; a
// peer with no room for the event returns an error instead, which means the
// event was not delivered.
type Peer interface {
	Send(Event) error
}

// PeerFunc adapts a function to the Peer interface.
type PeerFunc func(Event) error

// Send calls f(e).
func (f PeerFunc) Send(e Event) error { return f(e) }

// Presence lists the connections that count as "all".
type Presence interface {
	Online() []string
}

// Membership lists the current members of a room.
type Membership interface {
	Members(room string) []string
}

// Broadcaster fans events out to attached peers.
type Broadcaster struct {
	presence   Presence
	membership Membership
	logger     *zap.Logger

	mu    sync.RWMutex
	peers map[string]Peer
}

// New creates a Broadcaster that resolves targets through presence and
// membership. A nil logger disables logging.
func New(presence Presence, membership Membership, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		presence:   presence,
		membership: membership,
		logger:     logger,
		peers:      make(map[string]Peer),
	}
}

// Attach makes peer the delivery endpoint for id, replacing any previous one.
func (b *Broadcaster) Attach(id string, peer Peer) {
	b.mu.Lock()
	b.peers[id] = peer
	b.mu.Unlock()
}

// Detach removes the delivery endpoint for id.
func (b *Broadcaster) Detach(id string) {
	b.mu.Lock()
	delete(b.peers, id)
	b.mu.Unlock()
}

// ToAll delivers an event to every online connection and returns the number
// of successful deliveries.
func (b *Broadcaster) ToAll(name string, payload any) int {
	return b.deliver(b.presence.Online(), Event{Name: name, Payload: payload})
}

// ToRoom delivers an event to the members of room as of the call.
func (b *Broadcaster) ToRoom(room, name string, payload any) int {
	return b.deliver(b.membership.Members(room), Event{Name: name, Payload: payload})
}

// ToCaller delivers an event to a single connection.
func (b *Broadcaster) ToCaller(id, name string, payload any) error {
	peer, ok := b.peer(id)
	if !ok {
		return ErrNoPeer
	}
	return b.safeSend(peer, Event{Name: name, Payload: payload})
}

// safeSend shields the fan-out from a peer that panics, for example one
// writing to a channel closed by a concurrent teardown.
func (b *Broadcaster) safeSend(peer Peer, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("broadcast: peer panicked: %v", r)
		}
	}()
	return peer.Send(event)
}

func (b *Broadcaster) peer(id string) (Peer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	peer, ok := b.peers[id]
	return peer, ok
}

// snapshot resolves ids to peers under the read lock so delivery runs
// without holding it.
func (b *Broadcaster) snapshot(ids []string) ([]string, []Peer) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := make([]string, 0, len(ids))
	peers := make([]Peer, 0, len(ids))
	for _, id := range ids {
		if peer, ok := b.peers[id]; ok {
			targets = append(targets, id)
			peers = append(peers, peer)
		}
	}
	return targets, peers
}

func (b *Broadcaster) deliver(ids []string, event Event) int {
	targets, peers := b.snapshot(ids)

	delivered := 0
	for i, peer := range peers {
		if err := b.safeSend(peer, event); err != nil {
			b.logger.Warn("Delivery failed",
				zap.String("connectionId", targets[i]),
				zap.String("event", event.Name),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
