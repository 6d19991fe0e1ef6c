package gateway

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/cadview/internal/errors"
	"github.com/vango-dev/cadview/pkg/metrics"
	"github.com/vango-dev/cadview/pkg/middleware"
	"github.com/vango-dev/cadview/pkg/scene"
)

// Sink receives ingested geometry. *bridge.Bridge implements it.
type Sink interface {
	Send(ctx context.Context, kind string, payload any) (bool, error)
	Broadcast(ctx context.Context, kind string, payload any) (int, error)
}

// Config holds gateway settings.
type Config struct {
	// Addr is the listen address used by Listen.
	// Default: ":8080"
	Addr string

	// MaxBodyBytes caps an ingested geometry payload.
	// Default: 64MB
	MaxBodyBytes int64

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds
	ReadHeaderTimeout time.Duration

	// StaticDir is the static root. A missing directory is logged and
	// every static request gets a 404.
	StaticDir string

	// Broadcast forwards geometry to every bridge connection instead of
	// the earliest registered one.
	Broadcast bool

	// BridgeURL, when set, is rendered on the viewer page so the browser
	// knows where to connect.
	BridgeURL string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		MaxBodyBytes:      64 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		StaticDir:         "static",
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithScene retains every ingested payload in s.
func WithScene(s *scene.Store) Option {
	return func(g *Gateway) {
		g.scene = s
	}
}

// WithMetrics records request metrics into m and mounts /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway is the HTTP server.
type Gateway struct {
	config  Config
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	scene   *scene.Store
	root    *os.Root
	router  chi.Router

	server   *http.Server
	listener net.Listener
}

// New builds a Gateway forwarding geometry to sink.
func New(config Config, sink Sink, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if sink == nil {
		return nil, errors.New(errors.KindInvalidReference, "gateway.New", "nil sink")
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if config.Addr == "" {
		config.Addr = d.Addr
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = d.MaxBodyBytes
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = d.ReadHeaderTimeout
	}

	g := &Gateway{
		config: config,
		sink:   sink,
		logger: logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.scene == nil {
		g.scene = scene.New(0)
	}

	if config.StaticDir != "" {
		root, err := os.OpenRoot(config.StaticDir)
		switch {
		case err == nil:
			g.root = root
		case stderrors.Is(err, os.ErrNotExist):
			g.logger.Warn("static directory not found, static files disabled", "dir", config.StaticDir)
		default:
			return nil, errors.Wrap(errors.KindIO, "gateway.New", err)
		}
	}

	g.router = g.routes()
	return g, nil
}

func (g *Gateway) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.OpenTelemetry())
	r.Use(middleware.Prometheus(g.metrics))
	r.Use(middleware.AccessLog(g.logger))

	r.Get("/cad/", g.serveCAD)
	r.Get("/cad/{id}", g.serveCAD)
	r.Get("/static/*", g.serveStatic)
	r.Head("/static/*", g.serveStatic)
	r.Post("/d-shape", g.handleShape)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	r.NotFound(g.notFound)
	r.MethodNotAllowed(g.notFound)
	return r
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// Name identifies the gateway in lifecycle logs.
func (g *Gateway) Name() string {
	return "gateway"
}

// Listen binds the gateway address.
func (g *Gateway) Listen() error {
	ln, err := net.Listen("tcp", g.config.Addr)
	if err != nil {
		return errors.Wrap(errors.KindIO, "gateway.Listen", err)
	}
	g.listener = ln
	g.server = &http.Server{
		Handler:           g,
		ReadHeaderTimeout: g.config.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}
	g.logger.Info("gateway listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Serve accepts connections until Shutdown. It returns nil after a clean
// shutdown.
func (g *Gateway) Serve() error {
	if g.server == nil {
		return errors.New(errors.KindInvalidReference, "gateway.Serve", "not listening")
	}
	err := g.server.Serve(g.listener)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(errors.KindIO, "gateway.Serve", err)
}

// Shutdown stops accepting requests and waits for in-flight ones. Once ctx
// expires, lingering connections are closed and the call still succeeds.
func (g *Gateway) Shutdown(ctx context.Context) error {
	defer g.closeRoot()

	if g.server == nil {
		return nil
	}
	if err := g.server.Shutdown(ctx); err != nil {
		if !stderrors.Is(err, context.DeadlineExceeded) && !stderrors.Is(err, context.Canceled) {
			return errors.Wrap(errors.KindIO, "gateway.Shutdown", err)
		}
		g.logger.Warn("shutdown deadline reached, closing connections")
		_ = g.server.Close()
	}
	_ = g.listener.Close()
	return nil
}

func (g *Gateway) closeRoot() {
	if g.root != nil {
		_ = g.root.Close()
	}
}
