// Package gateway exposes the chat engine over HTTP: a streaming chat
// endpoint, a WebSocket variant, health and status probes, and the
// Prometheus scrape endpoint.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/chatd/internal/engine"
)

// ChatEngine is the subset of engine.Engine the gateway needs.
type ChatEngine interface {
	Handle(ctx context.Context, req engine.Request) (<-chan engine.Event, error)
}

// StatusSource reports runtime details for the /status endpoint.
type StatusSource interface {
	Model() string
	KBSections() int
}

// Gateway is the HTTP front end.
type Gateway struct {
	config    Config
	engine    ChatEngine
	status    StatusSource
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// Deps are the gateway's collaborators. Status and Gatherer are optional.
type Deps struct {
	Engine   ChatEngine
	Status   StatusSource
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// New creates a Gateway. The listener is not opened until Start.
func New(deps Deps, cfg Config) *Gateway {
	cfg.defaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Gateway{
		config:   cfg,
		engine:   deps.Engine,
		status:   deps.Status,
		gatherer: deps.Gatherer,
		logger:   deps.Logger,
	}
}

// Start opens the listener and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
		IdleTimeout:  g.config.IdleTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(ctx)
}
