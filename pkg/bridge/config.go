package bridge

import (
	"net/http"
	"time"
)

// Config holds bridge settings.
type Config struct {
	// Addr is the listen address used by Listen.
	// Default: ":8765"
	Addr string

	// Path is the WebSocket endpoint mounted on the bridge's own server.
	// Default: "/"
	Path string

	// ReadLimit is the maximum inbound frame size in bytes.
	// Default: 1MB
	ReadLimit int64

	// SendQueue is the outbound queue length of each connection. A
	// connection whose queue overflows is closed.
	// Default: 64
	SendQueue int

	// WriteTimeout bounds a single frame write.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// PingInterval is the time between heartbeat pings.
	// Default: 30 seconds
	PingInterval time.Duration

	// PongTimeout closes connections that stay silent, pongs included,
	// for this long. Must exceed PingInterval.
	// Default: 60 seconds
	PongTimeout time.Duration

	// CheckOrigin validates the Origin header of upgrade requests. The
	// page is served by the gateway on another port, so by default every
	// origin is accepted.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8765",
		Path:         "/",
		ReadLimit:    1 << 20,
		SendQueue:    64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= c.PingInterval {
		c.PongTimeout = 2 * c.PingInterval
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = AllowAllOrigins
	}
	return c
}

// AllowAllOrigins accepts every upgrade request.
func AllowAllOrigins(*http.Request) bool {
	return true
}
