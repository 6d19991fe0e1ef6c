package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// conn is one live WebSocket session. channels is touched only by the loop;
// send and done are safe from any goroutine.
type conn struct {
	id     string
	ws     *websocket.Conn
	config Config
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	channels map[string]EventChannel
}

func newConn(ws *websocket.Conn, config Config, logger *slog.Logger) *conn {
	id := uuid.NewString()
	return &conn{
		id:     id,
		ws:     ws,
		config: config,
		logger: logger.With("conn_id", id),
		send:   make(chan []byte, config.SendQueue),
		done:   make(chan struct{}),
	}
}

// ID implements Outbox.
func (c *conn) ID() string {
	return c.id
}

// Push implements Outbox.
func (c *conn) Push(eid string, data any) error {
	msg, err := encodePush(eid, data)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

// enqueue queues msg without blocking.
func (c *conn) enqueue(msg []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// closeTimeout bounds the close frame write.
const closeTimeout = time.Second

// close marks c closed and tears down the socket in the background: a close
// frame, then the TCP connection. It never blocks, so the loop can call it.
// Safe to call more than once and from any goroutine.
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		go func() {
			deadline := time.Now().Add(min(closeTimeout, c.config.WriteTimeout))
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
			_ = c.ws.Close()
		}()
	})
}

// closed reports whether close has been called.
func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readLoop reads frames and hands them to the loop until the socket fails.
// It blocks and must run on its own goroutine.
func (c *conn) readLoop(b *Bridge) {
	defer func() {
		c.close(websocket.CloseNormalClosure, "")
		b.post(event{kind: eventDisconnect, conn: c})
	}()

	c.ws.SetReadLimit(c.config.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) && !c.closed() {
				c.logger.Warn("read error", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.config.PongTimeout))

		if !b.post(event{kind: eventFrame, conn: c, data: msg}) {
			return
		}
	}
}

// writeLoop drains the outbound queue and sends heartbeat pings until the
// connection closes. A closed stopped channel closes the connection.
func (c *conn) writeLoop(stopped <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write error", "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping error", "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-stopped:
			c.close(websocket.CloseGoingAway, "server shutting down")
			return

		case <-c.done:
			return
		}
	}
}
