// Package session is the entry point of the relay core. The Coordinator
// receives intents from connections, applies them to the room directory and
// presence registry, and issues the resulting broadcasts in order.
//
// Every connection gets a Session with its own worker goroutine, so the
// intents of one connection are processed strictly in the order received
// while different connections interleave freely.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"go.uber.org/zap"
)

const defaultQueueSize = 64

var (
	// ErrEmptyConnectionID is returned by Connect for an empty id.
	ErrEmptyConnectionID = errors.New("session: empty connection id")
	// ErrDuplicateConnection is returned by Connect when id already has a live session.
	ErrDuplicateConnection = errors.New("session: connection already has a live session")
	// ErrCoordinatorClosed is returned by Connect after Shutdown.
	ErrCoordinatorClosed = errors.New("session: coordinator is shut down")
	// ErrSessionClosed is returned when an intent is submitted after disconnect.
	ErrSessionClosed = errors.New("session: closed")
)

// RoomInfo is a read-only view of one room.
type RoomInfo struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Stats summarizes coordinator state.
type Stats struct {
	Rooms    int `json:"rooms"`
	Online   int `json:"online"`
	Offline  int `json:"offline"`
	Sessions int `json:"sessions"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueueSize sets the per-session inbox capacity.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// Coordinator owns the registry, directory and broadcaster for one relay.
type Coordinator struct {
	registry    *presence.Registry
	directory   *rooms.Directory
	broadcaster *broadcast.Broadcaster
	logger      *zap.Logger
	queueSize   int

	// announce orders membership mutations together with the broadcasts
	// they trigger, so every client sees roomCreated/roomRemoved and
	// join/leave events in the order the directory applied them.
	announce sync.Mutex

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// New creates a Coordinator with fresh, empty state.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:  presence.NewRegistry(),
		directory: rooms.NewDirectory(),
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.broadcaster = broadcast.New(c.registry, c.directory, c.logger)
	return c
}

// Registry returns the presence registry.
func (c *Coordinator) Registry() *presence.Registry { return c.registry }

// Directory returns the room directory.
func (c *Coordinator) Directory() *rooms.Directory { return c.directory }

// Connect registers id as online, attaches peer as its delivery endpoint and
// starts its session worker.
func (c *Coordinator) Connect(id string, peer broadcast.Peer) (*Session, error) {
	if id == "" {
		return nil, ErrEmptyConnectionID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCoordinatorClosed
	}
	if _, exists := c.sessions[id]; exists {
		return nil, ErrDuplicateConnection
	}

	s := &Session{
		id:    id,
		coord: c,
		inbox: make(chan envelope, c.queueSize),
		done:  make(chan struct{}),
	}
	c.sessions[id] = s

	c.broadcaster.Attach(id, peer)
	c.registry.Register(id)
	go s.run()

	c.logger.Info("Connection registered",
		zap.String("connectionId", id),
		zap.Int("sessions", len(c.sessions)))
	return s, nil
}

// Session returns the live session for id.
func (c *Coordinator) Session(id string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[id]
	return s, ok
}

// Rooms returns every live room with its members, in creation order.
func (c *Coordinator) Rooms() []RoomInfo {
	names := c.directory.RoomNames()
	infos := make([]RoomInfo, 0, len(names))
	for _, name := range names {
		members := c.directory.Members(name)
		if len(members) == 0 {
			// removed between the two reads
			continue
		}
		infos = append(infos, RoomInfo{Name: name, Members: members})
	}
	return infos
}

// Stats returns a summary of the current state.
func (c *Coordinator) Stats() Stats {
	online, offline := c.registry.Count()

	c.mu.Lock()
	sessions := len(c.sessions)
	c.mu.Unlock()

	return Stats{
		Rooms:    c.directory.Len(),
		Online:   online,
		Offline:  offline,
		Sessions: sessions,
	}
}

// Shutdown disconnects every live session and refuses new connections. It
// returns ctx.Err() if ctx ends before all sessions finished teardown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	c.logger.Info("Disconnecting sessions", zap.Int("sessions", len(sessions)))

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) forget(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// handle applies one intent on behalf of id. It runs on id's session worker.
func (c *Coordinator) handle(id string, in Intent) {
	switch in.Kind {
	case JoinRoom:
		c.joinRoom(id, in.Room)
	case LeaveRoom:
		c.leaveRoom(id, in.Room)
	case SendMessage:
		c.sendMessage(id, in)
	case GetRooms:
		c.getRooms(id)
	case GetUsers:
		c.getUsers(id, in.Room)
	case Disconnect:
		c.disconnect(id)
	default:
		c.logger.Debug("Ignoring unknown intent",
			zap.String("connectionId", id),
			zap.Int("kind", int(in.Kind)))
	}
}

func (c *Coordinator) joinRoom(id, room string) {
	if err := ValidateRoomName(room); err != nil {
		c.logger.Debug("Ignoring join", zap.String("connectionId", id), zap.Error(err))
		return
	}

	c.announce.Lock()
	defer c.announce.Unlock()

	res := c.directory.Join(room, id)
	if res.AlreadyMember {
		return
	}
	if res.Moved != nil {
		c.announceLeave(id, *res.Moved)
	}
	if res.RoomCreated {
		c.broadcaster.ToAll(broadcast.EventRoomCreated, room)
	}
	c.broadcaster.ToRoom(room, broadcast.EventUserJoined, id)
	c.broadcaster.ToRoom(room, broadcast.EventSystemMessage, fmt.Sprintf("%s joined %s", id, room))

	c.logger.Info("Connection joined room",
		zap.String("connectionId", id),
		zap.String("room", room),
		zap.Bool("roomCreated", res.RoomCreated))
}

func (c *Coordinator) leaveRoom(id, room string) {
	c.announce.Lock()
	defer c.announce.Unlock()

	res := c.directory.Leave(room, id)
	if !res.WasMember {
		return
	}
	c.announceLeave(id, res)
}

// announceLeave broadcasts the consequences of id leaving res.Room. The
// departing connection is no longer a member, so it receives none of them
// except a roomRemoved sent to everyone.
func (c *Coordinator) announceLeave(id string, res rooms.LeaveResult) {
	if !res.WasMember {
		return
	}
	c.broadcaster.ToRoom(res.Room, broadcast.EventUserLeft, id)
	c.broadcaster.ToRoom(res.Room, broadcast.EventSystemMessage, fmt.Sprintf("%s left %s", id, res.Room))
	if res.RoomRemoved {
		c.broadcaster.ToAll(broadcast.EventRoomRemoved, res.Room)
	}

	c.logger.Info("Connection left room",
		zap.String("connectionId", id),
		zap.String("room", res.Room),
		zap.Bool("roomRemoved", res.RoomRemoved))
}

func (c *Coordinator) sendMessage(id string, in Intent) {
	if err := ValidateMessage(in.Text); err != nil {
		c.logger.Debug("Ignoring message", zap.String("connectionId", id), zap.Error(err))
		return
	}
	if err := ValidateUsername(in.User); err != nil {
		c.logger.Debug("Ignoring message", zap.String("connectionId", id), zap.Error(err))
		return
	}
	if !c.directory.IsMember(in.Room, id) {
		c.logger.Debug("Ignoring message to room without membership",
			zap.String("connectionId", id),
			zap.String("room", in.Room))
		return
	}

	user := in.User
	if user == "" {
		user = id
	}
	n := c.broadcaster.ToRoom(in.Room, broadcast.EventMessage, broadcast.ChatMessage{User: user, Text: in.Text})
	c.logger.Debug("Message relayed",
		zap.String("connectionId", id),
		zap.String("room", in.Room),
		zap.Int("recipients", n))
}

// Query replies are taken under announce so a listing never runs ahead of the
// roomCreated/roomRemoved events the caller has received.
func (c *Coordinator) getRooms(id string) {
	c.announce.Lock()
	defer c.announce.Unlock()

	c.reply(id, broadcast.EventRoomList, c.directory.RoomNames())
}

func (c *Coordinator) getUsers(id, room string) {
	c.announce.Lock()
	defer c.announce.Unlock()

	members := []string{}
	if c.directory.IsMember(room, id) {
		members = c.directory.Members(room)
	}
	c.reply(id, broadcast.EventUserList, members)
}

func (c *Coordinator) reply(id, event string, payload any) {
	if err := c.broadcaster.ToCaller(id, event, payload); err != nil {
		c.logger.Warn("Reply not delivered",
			zap.String("connectionId", id),
			zap.String("event", event),
			zap.Error(err))
	}
}

func (c *Coordinator) disconnect(id string) {
	c.announce.Lock()
	c.registry.MarkOffline(id)
	for _, res := range c.directory.LeaveAll(id) {
		c.announceLeave(id, res)
	}
	c.announce.Unlock()

	c.broadcaster.Detach(id)
	c.logger.Info("Connection disconnected", zap.String("connectionId", id))
}
