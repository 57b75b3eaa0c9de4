package cmdserver

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

// APICloser is the lifecycle capability this server needs from the data
// plane's ApiServer to implement POST /close.
type APICloser interface {
	Close() error
}

// NotifyController is the capability this server needs from the
// WSNotificationServer to implement POST /notify-close and the immediate
// re-dispatch on a fresh POST /notify-context install.
type NotifyController interface {
	CloseAllClients()
	DispatchInstalled(nc state.NotifyContext)
}

// Deps holds the dependencies required by the control-plane server.
type Deps struct {
	Config config.CmdConfig
	Logger *logging.Logger

	// Credentials, HTTPContext and NotifyContext are the same cells the
	// data-plane components read from; this server's POST handlers are the
	// only writers.
	Credentials   *state.Credentials
	HTTPContext   *state.HTTPContextCell
	NotifyContext *state.NotifyContextCell

	APIServer  APICloser
	NotifyWS   NotifyController
	AppVersion string

	// OnShutdownComplete, if set, is called once POST /close has finished
	// closing both the API server and this command server — the hook the
	// process entry point uses to stop waiting on its own shutdown context.
	OnShutdownComplete func()
}

// Server is the control-plane REST server.
type Server struct {
	cfg         config.CmdConfig
	logger      logging.Sink
	credentials *state.Credentials
	httpCtx     *state.HTTPContextCell
	notifyCtx   *state.NotifyContextCell
	apiServer   APICloser
	notifyWS    NotifyController
	appVersion  string
	onShutdown  func()

	server *http.Server
}

// New creates a new control-plane server. The server is not started until
// Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("cmdserver: logger is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("cmdserver: credentials registry is required")
	}
	if deps.HTTPContext == nil {
		return nil, fmt.Errorf("cmdserver: http context cell is required")
	}
	if deps.NotifyContext == nil {
		return nil, fmt.Errorf("cmdserver: notify context cell is required")
	}
	if deps.APIServer == nil {
		return nil, fmt.Errorf("cmdserver: api server reference is required")
	}
	if deps.NotifyWS == nil {
		return nil, fmt.Errorf("cmdserver: notify controller is required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		credentials: deps.Credentials,
		httpCtx:     deps.HTTPContext,
		notifyCtx:   deps.NotifyContext,
		apiServer:   deps.APIServer,
		notifyWS:    deps.NotifyWS,
		appVersion:  deps.AppVersion,
		onShutdown:  deps.OnShutdownComplete,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.buildRouter(),
	}

	go func() {
		s.logger.Info("cmd server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("cmd server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the control-plane server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("cmd server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down cmd server: %w", err)
	}
	return nil
}
