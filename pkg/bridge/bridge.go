package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/cadview/internal/errors"
	"github.com/vango-dev/cadview/pkg/metrics"
)

type state int

const (
	stateCreated state = iota
	stateRunning
	stateStopped
)

type eventKind int

const (
	eventConnect eventKind = iota
	eventFrame
	eventDisconnect
)

// event is everything a socket hands to the loop. Connect, frames and
// disconnect of one socket travel on the same channel, so the loop sees them
// in that order.
type event struct {
	kind eventKind
	conn *conn
	data []byte
}

type pushRequest struct {
	kind    string
	payload any
	all     bool
	reply   chan pushResult
}

type pushResult struct {
	delivered int
	err       error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records connection, frame and push metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// Bridge is the WebSocket event bridge.
type Bridge struct {
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu        sync.Mutex
	state     state
	kinds     []Kind
	kindIndex map[string]struct{}

	events   chan event
	pushes   chan pushRequest
	counts   chan chan int
	stop     chan struct{}
	stopOnce sync.Once
	started  chan struct{}
	stopped  chan struct{}

	// Loop-owned registry. order holds connections by registration time.
	conns map[string]*conn
	order []*conn

	server   *http.Server
	listener net.Listener
}

// New creates a Bridge. Kinds must be registered before Run.
func New(config Config, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	b := &Bridge{
		config:    config,
		logger:    logger.With("component", "bridge"),
		kindIndex: make(map[string]struct{}),
		events:    make(chan event, 64),
		pushes:    make(chan pushRequest),
		counts:    make(chan chan int),
		stop:      make(chan struct{}),
		started:   make(chan struct{}),
		stopped:   make(chan struct{}),
		conns:     make(map[string]*conn),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     config.CheckOrigin,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a kind to the set instantiated for each new connection.
func (b *Bridge) Register(kind Kind) error {
	if kind.Name == "" || kind.New == nil {
		return errors.New(errors.KindInvalidReference, "bridge.Register", "kind needs a name and a factory")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateCreated {
		return ErrServing
	}
	if _, ok := b.kindIndex[kind.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind.Name)
	}
	b.kindIndex[kind.Name] = struct{}{}
	b.kinds = append(b.kinds, kind)
	return nil
}

// Kinds returns the registered kind names in registration order.
func (b *Bridge) Kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, len(b.kinds))
	for i, k := range b.kinds {
		names[i] = k.Name
	}
	return names
}

func (b *Bridge) running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateRunning
}

// Run is the bridge loop. It returns when ctx is done or Stop is called,
// after closing every registered connection.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case stateRunning:
		b.mu.Unlock()
		return ErrServing
	case stateStopped:
		b.mu.Unlock()
		return ErrClosed
	}
	b.state = stateRunning
	kinds := append([]Kind(nil), b.kinds...)
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.teardown()

	close(b.started)
	b.logger.Info("bridge loop started", "kinds", len(kinds))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-b.stop:
			return nil

		case ev := <-b.events:
			switch ev.kind {
			case eventConnect:
				b.onConnect(ctx, ev.conn, kinds)
			case eventFrame:
				b.onMessage(ctx, ev.conn, ev.data)
			case eventDisconnect:
				b.onDisconnect(ev.conn)
			}

		case req := <-b.pushes:
			req.reply <- b.onPush(req)

		case reply := <-b.counts:
			reply <- len(b.order)
		}
	}
}

// Stop makes Run return. Safe to call more than once, and before Run, in
// which case Run will refuse to start.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.state == stateCreated {
			b.state = stateStopped
			close(b.stopped)
		}
	})
}

// Done is closed once the loop has stopped.
func (b *Bridge) Done() <-chan struct{} {
	return b.stopped
}

func (b *Bridge) teardown() {
	for _, c := range b.order {
		c.close(websocket.CloseGoingAway, "server shutting down")
		b.metrics.ConnectionClosed()
	}
	n := len(b.order)
	b.order = nil
	clear(b.conns)

	b.mu.Lock()
	b.state = stateStopped
	b.mu.Unlock()
	close(b.stopped)

	b.logger.Info("bridge loop stopped", "closed_connections", n)
}

// post hands ev to the loop. It reports false once the loop has stopped.
func (b *Bridge) post(ev event) bool {
	select {
	case b.events <- ev:
		return true
	case <-b.stopped:
		return false
	}
}

func (b *Bridge) onConnect(ctx context.Context, c *conn, kinds []Kind) {
	c.channels = make(map[string]EventChannel, len(kinds))
	for _, k := range kinds {
		c.channels[k.Name] = k.New(c)
	}
	b.conns[c.id] = c
	b.order = append(b.order, c)
	b.metrics.ConnectionOpened()
	c.logger.Info("client connected", "connections", len(b.order))

	for _, k := range kinds {
		opener, ok := c.channels[k.Name].(Opener)
		if !ok {
			continue
		}
		if err := opener.Open(ctx); err != nil {
			if isConnFailure(err) {
				b.remove(c, websocket.ClosePolicyViolation, "send queue full")
				return
			}
			c.logger.Warn("channel open failed", "eid", k.Name, "error", err)
		}
	}
}

func (b *Bridge) onMessage(ctx context.Context, c *conn, msg []byte) {
	if _, ok := b.conns[c.id]; !ok {
		return
	}

	eid, err := decodeEID(msg)
	if err != nil {
		b.metrics.Frame("unknown", "parse_error")
		c.logger.Debug("rejected frame", "error", err)
		b.reply(c, encodeError(err.Error()))
		return
	}

	ch, ok := c.channels[eid]
	if !ok {
		b.metrics.Frame("unknown", "unknown_event")
		err := errors.Newf(errors.KindUnknownEvent, "bridge.dispatch", "unknown event %q", eid)
		c.logger.Debug("rejected frame", "error", err)
		b.reply(c, encodeError(err.Error()))
		return
	}

	ctx, span := metrics.StartSpan(ctx, "bridge.dispatch", trace.SpanKindServer,
		attribute.String("bridge.conn_id", c.id),
		attribute.String("bridge.eid", eid),
	)
	result, err := ch.Receive(ctx, msg)
	metrics.EndSpan(span, err)

	if err != nil {
		b.metrics.Frame(eid, "error")
		c.logger.Warn("receive failed", "eid", eid, "error", err)
		b.reply(c, encodeError(err.Error()))
		return
	}
	b.metrics.Frame(eid, "ok")
	if result == nil {
		return
	}

	out, err := encodePush(eid, result)
	if err != nil {
		c.logger.Warn("encode reply failed", "eid", eid, "error", err)
		b.reply(c, encodeError(err.Error()))
		return
	}
	b.reply(c, out)
}

// reply queues msg on c and drops c if it can no longer be written.
func (b *Bridge) reply(c *conn, msg []byte) {
	if err := c.enqueue(msg); err != nil {
		b.remove(c, websocket.ClosePolicyViolation, "send queue full")
	}
}

func (b *Bridge) onDisconnect(c *conn) {
	if _, ok := b.conns[c.id]; !ok {
		return
	}
	b.remove(c, websocket.CloseNormalClosure, "")
}

// remove closes c and drops it from the registry. A no-op for absent
// connections.
func (b *Bridge) remove(c *conn, code int, reason string) {
	if _, ok := b.conns[c.id]; !ok {
		return
	}
	delete(b.conns, c.id)
	for i, oc := range b.order {
		if oc == c {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	c.close(code, reason)
	b.metrics.ConnectionClosed()
	c.logger.Info("client disconnected", "reason", reason, "connections", len(b.order))
}

func (b *Bridge) onPush(req pushRequest) pushResult {
	var res pushResult

	targets := append([]*conn(nil), b.order...)
	for _, c := range targets {
		ch, ok := c.channels[req.kind]
		if !ok {
			continue
		}
		if err := ch.Send(req.payload); err != nil {
			if isConnFailure(err) {
				b.metrics.Push(req.kind, "dropped")
				b.remove(c, websocket.ClosePolicyViolation, "send queue full")
				continue
			}
			b.metrics.Push(req.kind, "error")
			res.err = err
			return res
		}
		b.metrics.Push(req.kind, "delivered")
		res.delivered++
		if !req.all {
			break
		}
	}
	if res.delivered == 0 {
		b.metrics.Push(req.kind, "no_connection")
	}
	return res
}

func isConnFailure(err error) bool {
	return stderrors.Is(err, ErrQueueFull) || stderrors.Is(err, ErrConnClosed)
}

// Send pushes payload on kind to one connection, the earliest registered one
// still live. It reports false with a nil error when no connection is
// registered, and ErrClosed when the loop is not running.
func (b *Bridge) Send(ctx context.Context, kind string, payload any) (bool, error) {
	n, err := b.push(ctx, kind, payload, false)
	return n > 0, err
}

// Broadcast pushes payload on kind to every registered connection and
// returns how many received it.
func (b *Bridge) Broadcast(ctx context.Context, kind string, payload any) (int, error) {
	return b.push(ctx, kind, payload, true)
}

func (b *Bridge) push(ctx context.Context, kind string, payload any, all bool) (int, error) {
	b.mu.Lock()
	st := b.state
	_, known := b.kindIndex[kind]
	b.mu.Unlock()

	if st != stateRunning {
		return 0, ErrClosed
	}
	if !known {
		return 0, errors.Newf(errors.KindUnknownEvent, "bridge.Send", "unregistered kind %q", kind)
	}

	req := pushRequest{kind: kind, payload: payload, all: all, reply: make(chan pushResult, 1)}
	select {
	case b.pushes <- req:
	case <-b.stopped:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.delivered, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Connections returns the number of registered connections.
func (b *Bridge) Connections(ctx context.Context) (int, error) {
	if !b.running() {
		return 0, ErrClosed
	}
	reply := make(chan int, 1)
	select {
	case b.counts <- reply:
	case <-b.stopped:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Handler returns the WebSocket endpoint. Upgrades are refused with 503
// while the loop is not running.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(b.serveWS)
}

func (b *Bridge) serveWS(w http.ResponseWriter, r *http.Request) {
	if !b.running() {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		b.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(ws, b.config, b.logger)
	if !b.post(event{kind: eventConnect, conn: c}) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}

	go c.writeLoop(b.stopped)
	c.readLoop(b)
}

// Listen binds the bridge address and starts the loop, so Send, Broadcast
// and upgrades work as soon as it returns. Serve then accepts connections.
func (b *Bridge) Listen() error {
	ln, err := net.Listen("tcp", b.config.Addr)
	if err != nil {
		return errors.Wrap(errors.KindIO, "bridge.Listen", err)
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- b.Run(context.Background())
	}()
	select {
	case <-b.started:
	case err := <-runErr:
		_ = ln.Close()
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(b.config.Path, b.Handler())

	b.listener = ln
	b.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(b.logger.Handler(), slog.LevelWarn),
	}
	b.logger.Info("bridge listening", "addr", ln.Addr().String(), "path", b.config.Path)
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (b *Bridge) Addr() string {
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Name identifies the bridge in lifecycle logs.
func (b *Bridge) Name() string {
	return "bridge"
}

// Serve accepts connections on the bound listener until Shutdown. It
// returns nil after a clean shutdown, once the loop has stopped.
func (b *Bridge) Serve() error {
	if b.listener == nil {
		return ErrNotListening
	}

	err := b.server.Serve(b.listener)
	if stderrors.Is(err, http.ErrServerClosed) {
		err = nil
	} else {
		err = errors.Wrap(errors.KindIO, "bridge.Serve", err)
	}

	b.Stop()
	<-b.stopped
	return err
}

// Shutdown stops the loop, which closes every connection, and stops
// accepting new ones. Once ctx expires, remaining HTTP connections are
// closed forcefully and the call still succeeds.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.Stop()

	if b.server != nil {
		if err := b.server.Shutdown(ctx); err != nil {
			if !stderrors.Is(err, context.DeadlineExceeded) && !stderrors.Is(err, context.Canceled) {
				return errors.Wrap(errors.KindIO, "bridge.Shutdown", err)
			}
			b.logger.Warn("shutdown deadline reached, closing connections")
			_ = b.server.Close()
		}
		// Not tracked by the server when Serve never ran.
		_ = b.listener.Close()
	}

	select {
	case <-b.stopped:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.KindTimeout, "bridge.Shutdown", ctx.Err())
	}
}
