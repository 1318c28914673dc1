package server

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks the live WebSocket clients of a server and the goroutines that
// pump them, so shutdown can close every socket and wait for the pumps.
type Hub struct {
	clients map[*Client]struct{}
	mutex   sync.Mutex
	wg      sync.WaitGroup
	closed  bool
	logger  *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// register adds client and launches its pumps. It returns false once the
// hub is shutting down.
func (h *Hub) register(client *Client) bool {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return false
	}
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.wg.Add(2)
	h.mutex.Unlock()

	h.logger.Info("Client registered",
		zap.String("connectionId", client.id),
		zap.String("addr", client.addr),
		zap.Int("clients", clientCount))

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
	return true
}

func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("Client unregistered",
		zap.String("connectionId", client.id),
		zap.Int("clients", clientCount))
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// shutdownClients refuses new clients and closes every active socket. The
// read pumps then run the normal disconnect path.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("Error closing client connection",
				zap.String("connectionId", client.id),
				zap.Error(err))
		}
	}

	h.logger.Info("Closed client connections", zap.Int("clients", len(clients)))
}

// Shutdown closes all clients and waits for their pumps to finish or for ctx
// to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("Initiating hub shutdown")
	h.shutdownClients()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}
