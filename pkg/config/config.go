package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/cadview/internal/errors"
)

const (
	// FileName is the configuration file looked up when no path is given.
	FileName = "cadview.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CADVIEW_"
)

// Config is the complete server configuration.
type Config struct {
	// HTTP configures the Gateway.
	HTTP HTTPConfig `yaml:"http" envPrefix:"HTTP_"`

	// Bridge configures the WebSocket event bridge.
	Bridge BridgeConfig `yaml:"bridge" envPrefix:"BRIDGE_"`

	// Static configures the static asset root.
	Static StaticConfig `yaml:"static" envPrefix:"STATIC_"`

	// Scene configures retained geometry.
	Scene SceneConfig `yaml:"scene" envPrefix:"SCENE_"`

	// ShutdownTimeout bounds the join of each service during shutdown.
	// Default: 5 seconds.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`

	// Metrics configures Prometheus exposition.
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`

	// path stores where the config was loaded from.
	path string
}

// HTTPConfig holds Gateway settings.
type HTTPConfig struct {
	// Addr is the listen address. Default: ":8080".
	Addr string `yaml:"addr" env:"ADDR"`

	// MaxBodyBytes caps the size of an ingested geometry payload.
	// Default: 64MB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`

	// Broadcast pushes ingested geometry to every connection instead of a
	// single one. Default: false.
	Broadcast bool `yaml:"broadcast" env:"BROADCAST"`

	// ReadHeaderTimeout bounds reading request headers. Default: 10 seconds.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`

	// BridgeURL is the WebSocket URL rendered on the viewer page for the
	// browser to connect to, e.g. "ws://cad.example:8765/". Empty leaves the
	// choice to the browser script. Default: "".
	BridgeURL string `yaml:"bridge_url" env:"BRIDGE_URL"`
}

// BridgeConfig holds event bridge settings.
type BridgeConfig struct {
	// Addr is the listen address of the WebSocket endpoint. Default: ":8765".
	Addr string `yaml:"addr" env:"ADDR"`

	// Path is the WebSocket endpoint path. Default: "/".
	Path string `yaml:"path" env:"PATH"`

	// ReadLimit is the maximum size of an inbound frame. Default: 1MB.
	ReadLimit int64 `yaml:"read_limit" env:"READ_LIMIT"`

	// SendQueue is the per-connection outbound queue length. Default: 64.
	SendQueue int `yaml:"send_queue" env:"SEND_QUEUE"`

	// WriteTimeout bounds a single frame write. Default: 10 seconds.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// PingInterval is the time between heartbeat pings. Default: 30 seconds.
	PingInterval time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`

	// PongTimeout closes a connection that has not answered a ping.
	// Default: 60 seconds.
	PongTimeout time.Duration `yaml:"pong_timeout" env:"PONG_TIMEOUT"`
}

// StaticConfig holds static asset settings.
type StaticConfig struct {
	// Dir is the static root. Default: "static".
	Dir string `yaml:"dir" env:"DIR"`
}

// SceneConfig holds retained geometry settings.
type SceneConfig struct {
	// MaxShapes bounds the number of retained payloads. 0 disables
	// retention. Default: 256.
	MaxShapes int `yaml:"max_shapes" env:"MAX_SHAPES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level" env:"LEVEL"`

	// Format is text or json. Default: text.
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled mounts /metrics on the Gateway. Default: true.
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Namespace prefixes every metric name. Default: "cadview".
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			MaxBodyBytes:      64 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Bridge: BridgeConfig{
			Addr:         ":8765",
			Path:         "/",
			ReadLimit:    1 << 20,
			SendQueue:    64,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			PongTimeout:  60 * time.Second,
		},
		Static:          StaticConfig{Dir: "static"},
		Scene:           SceneConfig{MaxShapes: 256},
		ShutdownTimeout: 5 * time.Second,
		Logging:         LoggingConfig{Level: "info", Format: "text"},
		Metrics:         MetricsConfig{Enabled: true, Namespace: "cadview"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Newf(errors.KindNotFound, "config.Load", "no config file at %s", path)
			}
			return nil, errors.Wrap(errors.KindIO, "config.Load", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, err
		}
		cfg.path = path
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(errors.KindParse, "config.env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML overlays YAML data onto c. Unknown keys are rejected so typos
// surface at startup.
func (c *Config) decodeYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return errors.Wrap(errors.KindParse, "config.yaml", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return invalid("http.addr must not be empty")
	case c.Bridge.Addr == "":
		return invalid("bridge.addr must not be empty")
	case c.Bridge.Path == "" || c.Bridge.Path[0] != '/':
		return invalid("bridge.path must start with '/'")
	case c.HTTP.MaxBodyBytes <= 0:
		return invalid("http.max_body_bytes must be positive")
	case c.Bridge.SendQueue <= 0:
		return invalid("bridge.send_queue must be positive")
	case c.Bridge.ReadLimit <= 0:
		return invalid("bridge.read_limit must be positive")
	case c.Bridge.PingInterval <= 0 || c.Bridge.PongTimeout <= c.Bridge.PingInterval:
		return invalid("bridge.pong_timeout must exceed bridge.ping_interval")
	case c.Scene.MaxShapes < 0:
		return invalid("scene.max_shapes must not be negative")
	case c.ShutdownTimeout <= 0:
		return invalid("shutdown_timeout must be positive")
	case c.Static.Dir == "":
		return invalid("static.dir must not be empty")
	case c.HTTP.BridgeURL != "" && !strings.HasPrefix(c.HTTP.BridgeURL, "ws://") && !strings.HasPrefix(c.HTTP.BridgeURL, "wss://"):
		return invalid("http.bridge_url must be a ws:// or wss:// URL")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return invalid(fmt.Sprintf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	return nil
}

func invalid(msg string) error {
	return errors.New(errors.KindParse, "config.Validate", msg)
}

// Path returns the file the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// Exists reports whether a config file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
