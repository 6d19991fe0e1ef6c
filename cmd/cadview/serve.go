package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cadview"
	"github.com/vango-dev/cadview/pkg/config"
)

type serveOptions struct {
	configPath string
	addr       string
	bridgeAddr string
	staticDir  string
	bridgeURL  string
	broadcast  bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway and the bridge",
		Long: `Start the HTTP gateway and the WebSocket bridge.

Configuration is read from --config, or from ./cadview.yaml when present.
Environment variables prefixed with CADVIEW_ override the file, and flags
override both.

Examples:
  cadview serve
  cadview serve --addr=:9000 --bridge-addr=:9001
  cadview serve --config=/etc/cadview.yaml --static=./public`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ./cadview.yaml if present)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP gateway listen address")
	cmd.Flags().StringVar(&opts.bridgeAddr, "bridge-addr", "", "WebSocket bridge listen address")
	cmd.Flags().StringVar(&opts.staticDir, "static", "", "Static asset directory")
	cmd.Flags().StringVar(&opts.bridgeURL, "bridge-url", "", "WebSocket URL rendered on the viewer page")
	cmd.Flags().BoolVar(&opts.broadcast, "broadcast", false, "Push geometry to every connected browser")

	return cmd
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(opts serveOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" && config.Exists(config.FileName) {
		path = config.FileName
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.addr != "" {
		cfg.HTTP.Addr = opts.addr
	}
	if opts.bridgeAddr != "" {
		cfg.Bridge.Addr = opts.bridgeAddr
	}
	if opts.staticDir != "" {
		cfg.Static.Dir = opts.staticDir
	}
	if opts.bridgeURL != "" {
		cfg.HTTP.BridgeURL = opts.bridgeURL
	}
	if opts.broadcast {
		cfg.HTTP.Broadcast = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, opts serveOptions) error {
	printBanner()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cadview.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer app.Shutdown()

	if cfg.Path() != "" {
		info("Config", cfg.Path())
	}
	info("HTTP", cfg.HTTP.Addr)
	info("Bridge", cfg.Bridge.Addr+cfg.Bridge.Path)
	info("Static", cfg.Static.Dir)
	if st, err := os.Stat(cfg.Static.Dir); err != nil || !st.IsDir() {
		warn("static directory %s not found, /static/ will return 404", cfg.Static.Dir)
	}
	if cfg.Metrics.Enabled {
		info("Metrics", cfg.HTTP.Addr+"/metrics")
	}
	fmt.Println()

	logger.Info("starting cadview",
		"version", version,
		"http_addr", cfg.HTTP.Addr,
		"bridge_addr", cfg.Bridge.Addr,
	)

	if err := app.Run(ctx); err != nil {
		return err
	}
	success("stopped")
	return nil
}
