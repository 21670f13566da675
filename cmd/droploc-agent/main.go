// Command droploc-agent runs a droploc engine against a live dispatch backend.
//
// It connects as one actor, optionally replays a recorded route as position
// updates, exposes Prometheus metrics and, in interactive mode, lets the
// operator accept or decline ride requests from a prompt.
//
// Usage:
//
//	droploc-agent [flags]
//
// Flags:
//
//	-config string        YAML configuration file (defaults apply when empty)
//	-transport string     Broker transport: stomp or nats (default "stomp")
//	-url string           Broker URL (ws://host/ws-location or nats://host:4222)
//	-token string         Access token; DROPLOC_TOKEN when empty
//	-actor string         Actor identity; derived from the token when empty
//	-route string         YAML route file to replay as position updates
//	-metrics-addr string  Listen address for /metrics and /health (disabled when empty)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Read commands from a readline prompt
//	-reconnect            Reopen a lost session with jittered backoff (default true)
//
// Examples:
//
//	# Driver replaying a route against a local STOMP broker
//	droploc-agent -url ws://localhost:8080/ws-location -token $TOKEN -route route.yaml
//
//	# Interactive driver console over NATS with metrics
//	droploc-agent -transport nats -url nats://localhost:4222 -interactive -metrics-addr :9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apandit646/droploc"
	"github.com/apandit646/droploc/credentials"
	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/apandit646/droploc/transport/natstransport"
	"github.com/apandit646/droploc/transport/stomp"
	"github.com/prometheus/client_golang/prometheus"
)

type agentConfig struct {
	ConfigFile  string
	Transport   string
	URL         string
	Token       string
	Actor       string
	RouteFile   string
	MetricsAddr string
	LogLevel    string
	Interactive bool
	Reconnect   bool
}

var config agentConfig

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&config.Transport, "transport", "stomp", "Broker transport: stomp or nats")
	flag.StringVar(&config.URL, "url", "", "Broker URL")
	flag.StringVar(&config.Token, "token", "", "Access token (DROPLOC_TOKEN when empty)")
	flag.StringVar(&config.Actor, "actor", "", "Actor identity (derived from the token when empty)")
	flag.StringVar(&config.RouteFile, "route", "", "YAML route file to replay")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Listen address for /metrics and /health")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Read commands from a readline prompt")
	flag.BoolVar(&config.Reconnect, "reconnect", true, "Reopen the session with jittered backoff after it is lost")
}

func main() {
	flag.Parse()

	if config.Token == "" {
		config.Token = os.Getenv("DROPLOC_TOKEN")
	}

	if err := run(config); err != nil {
		log.Fatalf("droploc-agent: %v", err)
	}
}

func run(ac agentConfig) error {
	level, err := logging.ParseLevel(ac.LogLevel)
	if err != nil {
		return err
	}

	cfg := droploc.DefaultConfig()
	if ac.ConfigFile != "" {
		if cfg, err = droploc.LoadConfig(ac.ConfigFile); err != nil {
			return err
		}
	}

	var route *Route
	if ac.RouteFile != "" {
		if route, err = LoadRoute(ac.RouteFile); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *Console
	var logOut io.Writer = os.Stderr
	if ac.Interactive {
		if console, err = NewConsole(); err != nil {
			return err
		}
		defer console.Close()
		logOut = console.Stdout()
	}
	logger := logging.NewSlogText(logOut, level).With("component", "droploc-agent")

	creds, err := buildCredentials(ac)
	if err != nil {
		return err
	}

	transport, err := buildTransport(ac, creds, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	opts := []droploc.Option{
		droploc.WithLogger(logger),
		droploc.WithMetrics(metrics.NewPrometheus(reg, "droploc")),
		droploc.WithHooks(agentHooks(logOut)),
	}

	eng, err := droploc.NewEngine(&cfg, transport, nil, creds, opts...)
	if err != nil {
		return err
	}

	if ac.MetricsAddr != "" {
		srv := NewMetricsServer(ac.MetricsAddr, reg, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
		defer stopCancel()
		if err := eng.Stop(stopCtx); err != nil {
			logger.Warn("engine stop", "error", err)
		}
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	err = eng.Connect(connectCtx)
	connectCancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if ac.Reconnect {
		r := &reconnector{
			eng:     eng,
			backoff: newBackoff(500*time.Millisecond, 30*time.Second, 0),
			timeout: cfg.OperationTimeout,
			logger:  logger,
		}
		go r.Run(ctx)
	}

	if route != nil {
		go func() {
			if err := route.Replay(ctx, eng.UpdatePosition); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("route replay stopped", "error", err)
			}
		}()
	}

	if console != nil {
		go console.Run(ctx, cancel, eng)
	}

	select {
	case <-ctx.Done():
		logger.Info("console closed, shutting down")
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}

	return nil
}

func buildCredentials(ac agentConfig) (droploc.CredentialStore, error) {
	if ac.Actor != "" {
		return credentials.NewStatic(ac.Token, ac.Actor), nil
	}
	if ac.Token == "" {
		return nil, errors.New("either -token or -actor is required")
	}

	return credentials.NewJWT(ac.Token, nil)
}

func buildTransport(ac agentConfig, creds droploc.CredentialStore, logger droploc.Logger) (droploc.Transport, error) {
	if ac.URL == "" {
		return nil, errors.New("-url is required")
	}

	switch ac.Transport {
	case "stomp":
		return stomp.New(ac.URL, stomp.WithCredentials(creds), stomp.WithLogger(logger)), nil
	case "nats":
		return natstransport.New(ac.URL,
			natstransport.WithName("droploc-agent"),
			natstransport.WithToken(ac.Token),
			natstransport.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", ac.Transport)
	}
}

func agentHooks(w io.Writer) *droploc.Hooks {
	return &droploc.Hooks{
		OnDisplay: func(_ context.Context, ev droploc.RideRequestEvent, deadline time.Time) error {
			_, _ = fmt.Fprintf(w, "ride request %s from %s to %q, %.2f km away (respond by %s)\n",
				ev.RequestID, ev.Requester.Name, ev.Destination, ev.DistanceToPickup, deadline.Format(time.TimeOnly))

			return nil
		},
		OnDismiss: func(_ context.Context, ev droploc.RideRequestEvent, res droploc.Resolution) error {
			_, _ = fmt.Fprintf(w, "ride request %s %s\n", ev.RequestID, res)

			return nil
		},
		OnAccept: func(_ context.Context, ev droploc.RideRequestEvent) error {
			_, _ = fmt.Fprintf(w, "call %s at %s\n", ev.Requester.Name, ev.Requester.Phone)

			return nil
		},
	}
}
