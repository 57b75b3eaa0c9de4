package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/catenis-emulator/internal/infrastructure/config"
	"github.com/nerrad567/catenis-emulator/internal/infrastructure/logging"
	"github.com/nerrad567/catenis-emulator/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger

	// Credentials and HTTPContext are owned here; CommandServer installs
	// into them through the same pointers.
	Credentials *state.Credentials
	HTTPContext *state.HTTPContextCell

	// NotifyWS, when non-nil, handles GET requests whose path matches the
	// notify/ws/<eventName> shape — the WebSocket upgrade entry point. It is
	// mounted on this server's own listener, per spec.md's shared-socket
	// design. Left nil, such paths fall through to the ordinary matcher
	// (which will simply fail to match the installed HttpContext).
	NotifyWS http.Handler
}

// Server is the emulated Catenis API server.
type Server struct {
	cfg         config.APIConfig
	logger      logging.Sink
	credentials *state.Credentials
	httpCtx     *state.HTTPContextCell
	notifyWS    http.Handler
	basePath    string

	server *http.Server
}

// New creates a new API server. The server is not started until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("apiserver: logger is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("apiserver: credentials registry is required")
	}
	if deps.HTTPContext == nil {
		return nil, fmt.Errorf("apiserver: http context cell is required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		credentials: deps.Credentials,
		httpCtx:     deps.HTTPContext,
		notifyWS:    deps.NotifyWS,
		basePath:    "/api/" + deps.Config.APIVersion + "/",
	}, nil
}

// SetNotifyWS attaches the WebSocket upgrade handler after construction,
// for callers that must build the WSNotificationServer with a reference to
// this Server's AuthenticateRequest method first.
func (s *Server) SetNotifyWS(h http.Handler) {
	s.notifyWS = h
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("api server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to gracefulShutdownTimeout. Connections already upgraded to
// WebSocket are hijacked, so Close neither waits for nor closes them.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
