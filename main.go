// Command arena-relay runs the multiplayer relay server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket game
//     endpoint, the REST admin API, a QR share image and an /mcp endpoint
//  2. "mcp" – runs an MCP stdio server that proxies to a running relay's API
//
// Configuration comes from defaults, an optional config file, ARENA_*
// environment variables (a .env file is loaded first) and flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/arena-relay/api"
	"github.com/wricardo/arena-relay/config"
	"github.com/wricardo/arena-relay/game/relay"
	"github.com/wricardo/arena-relay/transport/console"
	"github.com/wricardo/arena-relay/transport/mcp"
	"github.com/wricardo/arena-relay/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Arena Relay"
)

// configKeys are the flags that feed config.Load when set explicitly
var configKeys = []string{
	config.KeyHost,
	config.KeyPort,
	config.KeyPublicURL,
	config.KeyWorldWidth,
	config.KeyWorldHeight,
	config.KeySpawnInterval,
	config.KeyMaxPlayers,
	config.KeyMaxMessageSize,
	config.KeyAllowedOrigins,
	config.KeyAdminToken,
	config.KeyConsole,
	config.KeyShutdownGrace,
	config.KeyLogLevel,
	config.KeyLogFormat,
	config.KeyNgrok,
	config.KeyNgrokAuth,
	config.KeyNgrokDomain,
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("error loading .env file")
		}
	} else {
		log.Debug().Msg("loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	def := config.Default()

	return &cli.Command{
		Name:    "arena-relay",
		Usage:   "real-time relay server for a browser multiplayer shooter",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (yaml, json or toml)", Sources: cli.EnvVars("ARENA_CONFIG")},
			&cli.StringFlag{Name: config.KeyHost, Usage: "HTTP server host", Value: def.Host},
			&cli.IntFlag{Name: config.KeyPort, Aliases: []string{"p"}, Usage: "HTTP server port", Value: def.Port},
			&cli.StringFlag{Name: config.KeyPublicURL, Usage: "WebSocket URL advertised by /qr (derived from the request when empty)"},
			&cli.FloatFlag{Name: config.KeyWorldWidth, Usage: "world width used for spawn positions", Value: def.WorldWidth},
			&cli.FloatFlag{Name: config.KeyWorldHeight, Usage: "world height used for spawn positions", Value: def.WorldHeight},
			&cli.DurationFlag{Name: config.KeySpawnInterval, Usage: "time between item spawns", Value: def.SpawnInterval},
			&cli.IntFlag{Name: config.KeyMaxPlayers, Usage: "player capacity reported by status", Value: def.MaxPlayers},
			&cli.Int64Flag{Name: config.KeyMaxMessageSize, Usage: "largest accepted WebSocket frame in bytes", Value: def.MaxMessageSize},
			&cli.StringSliceFlag{Name: config.KeyAllowedOrigins, Usage: "accepted Origin headers, * for any", Value: def.AllowedOrigins},
			&cli.StringFlag{Name: config.KeyAdminToken, Usage: "bearer token for POST /api/shutdown (disabled when empty)"},
			&cli.BoolFlag{Name: config.KeyConsole, Usage: "read operator commands from stdin", Value: def.Console},
			&cli.DurationFlag{Name: config.KeyShutdownGrace, Usage: "delay before exit after shutdown", Value: def.ShutdownGrace},
			&cli.StringFlag{Name: config.KeyLogLevel, Usage: "trace, debug, info, warn or error", Value: def.LogLevel},
			&cli.StringFlag{Name: config.KeyLogFormat, Usage: "console or json", Value: def.LogFormat},
			&cli.BoolFlag{Name: config.KeyNgrok, Usage: "expose the server through an ngrok tunnel"},
			&cli.StringFlag{Name: config.KeyNgrokAuth, Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: config.KeyNgrokDomain, Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the relay server (default)",
				Action: runServe,
			},
			{
				Name:   "validate",
				Usage:  "resolve the configuration, report problems and print the result",
				Action: runValidate,
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server against a running relay",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "base URL of the relay HTTP API", Value: "http://localhost:8080", Sources: cli.EnvVars("ARENA_URL")},
					&cli.StringFlag{Name: "token", Usage: "admin token for stop_server", Sources: cli.EnvVars("ARENA_ADMIN_TOKEN")},
				},
				Action: runMCP,
			},
		},
	}
}

// flagOverrides collects explicitly set flags for config.Load
func flagOverrides(cmd *cli.Command) map[string]any {
	overrides := make(map[string]any)
	for _, name := range configKeys {
		if cmd.IsSet(name) {
			overrides[name] = cmd.Value(name)
		}
	}
	return overrides
}

func setupLogging(level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), flagOverrides(cmd))
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := relay.NewServer(relay.Options{
		Bounds:        cfg.Bounds(),
		SpawnInterval: cfg.SpawnInterval,
		MaxPlayers:    cfg.MaxPlayers,
	})
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	handler := api.NewServer(srv, api.Options{
		Name:       AppName,
		Version:    Version,
		AdminToken: cfg.AdminToken,
		PublicURL:  cfg.PublicURL,
		WebSocket: websocket.NewHandler(srv, websocket.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			MaxMessageSize: cfg.MaxMessageSize,
		}),
		MCP: mcp.NewClient(cfg.LocalURL(), cfg.AdminToken),
	})

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		srv.Stop()
		<-srv.Done()
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Info().
		Str("addr", cfg.Addr()).
		Str("version", Version).
		Msgf("%s listening", AppName)
	log.Info().Msgf("WebSocket: ws://%s/ws", listener.Addr())
	log.Info().Msgf("REST API: %s/api/status", cfg.LocalURL())
	log.Info().Msgf("MCP endpoint: %s/mcp", cfg.LocalURL())

	tunnelCtx, cancelTunnel := context.WithCancel(ctx)
	defer cancelTunnel()

	var wg sync.WaitGroup
	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(tunnelCtx, cfg, handler)
		}()
	}

	if cfg.Console {
		go console.New(srv, os.Stdin).Run(ctx)
	}

	select {
	case err = <-runErr:
	case err = <-serveErr:
		log.Error().Err(err).Msg("HTTP server failed")
		srv.Stop()
		<-runErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("HTTP server shutdown error")
	}

	cancelTunnel()
	wg.Wait()

	if cfg.ShutdownGrace > 0 {
		time.Sleep(cfg.ShutdownGrace)
	}

	log.Info().Msg("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg *config.Config, handler http.Handler) {
	if cfg.NgrokAuth == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Info().Str("domain", cfg.NgrokDomain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info().Msg("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	publicURL := tun.URL()
	log.Info().Str("url", publicURL).Msg("ngrok tunnel established")
	log.Info().Msgf("  WebSocket (ngrok): %s/ws", strings.Replace(publicURL, "https://", "wss://", 1))
	log.Info().Msgf("  QR code (ngrok): %s/qr", publicURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), flagOverrides(cmd))
	if err != nil {
		return err
	}

	redacted := *cfg
	if redacted.AdminToken != "" {
		redacted.AdminToken = "<set>"
	}
	if redacted.NgrokAuth != "" {
		redacted.NgrokAuth = "<set>"
	}

	out, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, string(out))
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP protocol; keep logs on stderr and quiet
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	client := mcp.NewClient(cmd.String("url"), cmd.String("token"))
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
