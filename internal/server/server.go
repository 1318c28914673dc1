package server

import (
	"context"
	"net"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/session"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Server is one relay instance: its coordinator state, live clients and
// HTTP surface.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	coord    *session.Coordinator
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	handler  http.Handler
	httpSrv  *http.Server
}

// New builds a Server from cfg. A nil cfg uses the defaults and a nil logger
// discards everything.
func New(cfg *Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg.sanitize(),
		logger: logger,
	}
	s.coord = session.New(
		session.WithLogger(logger.Named("session")),
		session.WithQueueSize(s.cfg.SessionQueueSize),
	)
	s.hub = NewHub(logger.Named("hub"))
	s.origins = newOriginPolicy(s.cfg.AllowedOrigins, logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	s.handler = s.setupRoutes()
	s.httpSrv = CreateServer(s.cfg.Port, s.handler)
	return s
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	cfg := s.cfg
	cfg.AllowedOrigins = append([]string(nil), s.cfg.AllowedOrigins...)
	return cfg
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.handler }

// Coordinator returns the relay core behind the WebSocket endpoint.
func (s *Server) Coordinator() *session.Coordinator { return s.coord }

// Start listens on the configured port and serves until Shutdown. It returns
// nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Port)
	if err != nil {
		return errors.Wrapf(err, "server: listen on %s", s.cfg.Port)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server: serve")
	}
	return nil
}

// Shutdown stops accepting requests, disconnects every client so each one
// runs its normal leave path, and waits for the teardown to finish or ctx to
// end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	var firstErr error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		firstErr = errors.Wrap(err, "server: http shutdown")
	}
	if err := s.hub.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "server: hub shutdown")
	}
	if err := s.coord.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "server: session shutdown")
	}

	if firstErr != nil {
		s.logger.Warn("Shutdown incomplete", zap.Error(firstErr))
		return firstErr
	}
	s.logger.Info("Shutdown completed")
	return nil
}
