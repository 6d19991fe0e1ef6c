// Package config loads the cadview server configuration.
//
// Values are resolved in three layers, later layers winning:
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. environment variables prefixed with CADVIEW_
//
// # Configuration File Structure
//
//	http:
//	  addr: ":8080"
//	  max_body_bytes: 67108864
//	  broadcast: false
//	  bridge_url: "ws://localhost:8765/"
//	bridge:
//	  addr: ":8765"
//	  path: "/"
//	  ping_interval: 30s
//	static:
//	  dir: "static"
//	scene:
//	  max_shapes: 256
//	shutdown_timeout: 5s
//	logging:
//	  level: info
//	  format: text
//	metrics:
//	  enabled: true
//
// # Environment
//
// Every field has an environment name built from its section, e.g.
// CADVIEW_HTTP_ADDR, CADVIEW_BRIDGE_PING_INTERVAL, CADVIEW_STATIC_DIR,
// CADVIEW_SHUTDOWN_TIMEOUT.
//
// # Usage
//
//	cfg, err := config.Load("cadview.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("HTTP:", cfg.HTTP.Addr)
package config
