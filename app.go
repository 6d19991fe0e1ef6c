package cadview

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/vango-dev/cadview/pkg/config"
	"github.com/vango-dev/cadview/internal/errors"
	"github.com/vango-dev/cadview/pkg/bridge"
	"github.com/vango-dev/cadview/pkg/gateway"
	"github.com/vango-dev/cadview/pkg/lifecycle"
	"github.com/vango-dev/cadview/pkg/metrics"
	"github.com/vango-dev/cadview/pkg/scene"
)

// App wires the bridge, the gateway and the retained scene under one
// lifecycle manager.
type App struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	scene   *scene.Store
	clicks  bridge.ClickHandlerRef

	bridge  *bridge.Bridge
	gateway *gateway.Gateway
	manager *lifecycle.Manager
}

// New builds an App from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		config: cfg,
		logger: logger,
		scene:  scene.New(cfg.Scene.MaxShapes),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))
	}

	a.bridge = bridge.New(bridge.Config{
		Addr:      cfg.Bridge.Addr,
		Path:      cfg.Bridge.Path,
		ReadLimit: cfg.Bridge.ReadLimit,
		// Room for the replayed scene on top of live traffic.
		SendQueue:    cfg.Bridge.SendQueue + cfg.Scene.MaxShapes,
		WriteTimeout: cfg.Bridge.WriteTimeout,
		PingInterval: cfg.Bridge.PingInterval,
		PongTimeout:  cfg.Bridge.PongTimeout,
	}, logger, bridge.WithMetrics(a.metrics))

	if err := a.bridge.Register(bridge.LoadShape(a.scene)); err != nil {
		return nil, err
	}
	if err := a.bridge.Register(bridge.ShapeClick(&a.clicks)); err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Config{
		Addr:              cfg.HTTP.Addr,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		StaticDir:         cfg.Static.Dir,
		Broadcast:         cfg.HTTP.Broadcast,
		BridgeURL:         cfg.HTTP.BridgeURL,
	}, a.bridge, logger, gateway.WithScene(a.scene), gateway.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}
	a.gateway = gw

	a.manager = lifecycle.New(logger, lifecycle.WithTimeout(cfg.ShutdownTimeout))
	// Registration order is shutdown order.
	if err := a.manager.Add(a.bridge); err != nil {
		return nil, err
	}
	if err := a.manager.Add(a.gateway); err != nil {
		return nil, err
	}
	return a, nil
}

// OnShapeClicked sets the handler for browser shape clicks. A non-nil result
// is sent back to the clicking browser. It may be called at any time.
func (a *App) OnShapeClicked(fn bridge.ClickHandler) {
	a.clicks.Store(fn)
}

// LoadGeometry retains payload and pushes it to the browser, the same way a
// POST to /d-shape does. It reports whether a browser received it.
func (a *App) LoadGeometry(ctx context.Context, payload json.RawMessage) (bool, error) {
	if !json.Valid(payload) {
		return false, errors.New(errors.KindParse, "cadview.LoadGeometry", "payload is not valid JSON")
	}
	a.scene.Add(payload)

	if a.config.HTTP.Broadcast {
		n, err := a.bridge.Broadcast(ctx, bridge.KindLoadShape, payload)
		return n > 0, err
	}
	return a.bridge.Send(ctx, bridge.KindLoadShape, payload)
}

// ClearScene drops every retained shape. Connected browsers keep what they
// have already drawn.
func (a *App) ClearScene() {
	a.scene.Clear()
}

// Start binds both servers and begins serving.
func (a *App) Start() error {
	return a.manager.Start()
}

// Shutdown stops both servers. It is safe to call more than once.
func (a *App) Shutdown() {
	a.manager.Shutdown()
}

// Run serves until ctx is done or a server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	return a.manager.Run(ctx)
}

// Wait blocks until the App has stopped.
func (a *App) Wait() {
	a.manager.Wait()
}

// State returns the lifecycle state.
func (a *App) State() lifecycle.State {
	return a.manager.State()
}

// GatewayAddr returns the bound HTTP address.
func (a *App) GatewayAddr() string {
	return a.gateway.Addr()
}

// BridgeAddr returns the bound WebSocket address.
func (a *App) BridgeAddr() string {
	return a.bridge.Addr()
}

// Connections returns the number of connected browsers.
func (a *App) Connections(ctx context.Context) (int, error) {
	return a.bridge.Connections(ctx)
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}
