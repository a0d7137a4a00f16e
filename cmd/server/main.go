package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/devicelink/mqttbroker/internal/acceptor"
	"github.com/devicelink/mqttbroker/internal/config"
	"github.com/devicelink/mqttbroker/internal/devicebridge"
	"github.com/devicelink/mqttbroker/internal/dispatch"
	"github.com/devicelink/mqttbroker/internal/httpapi"
	"github.com/devicelink/mqttbroker/internal/mdnsadvert"
	"github.com/devicelink/mqttbroker/internal/subscript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("broker terminated", "error", err)
		os.Exit(1)
	}

	logger.Info("broker stopped cleanly")
}

// run wires every component and orchestrates its lifecycle with an
// errgroup: the first goroutine to return an error (or ctx cancellation)
// triggers shutdown of the rest, replacing the teacher's hand-rolled
// select-over-three-channels shape with golang.org/x/sync/errgroup's
// cooperative cancellation.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	registry := subscript.New(logger)
	devices := devicebridge.New(logger)
	d := dispatch.New(logger, registry, devices)
	acc := acceptor.New(logger, d)
	api := httpapi.New(logger, registry, devices)

	httpServer := &http.Server{Addr: cfg.HTTPBindAddress, Handler: api.Handler()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return acc.Serve(gctx, cfg.MQTTBindAddress)
	})

	g.Go(func() error {
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	var advertiser *mdnsadvert.Advertiser
	if cfg.AdvertiseMDNS {
		advertiser = mdnsadvert.New(logger)
		if port, ok := portOf(cfg.MQTTBindAddress); ok {
			if err := advertiser.Start(port); err != nil {
				logger.Warn("mdns advertisement failed to start", "error", err)
			}
		} else {
			logger.Warn("skipping mdns advertisement: could not determine a fixed mqtt port", "bind", cfg.MQTTBindAddress)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		if advertiser != nil {
			advertiser.Stop()
		}
		_ = httpServer.Close()
		return acc.Stop()
	})

	return g.Wait()
}

func portOf(bind string) (int, bool) {
	_, portStr, err := net.SplitHostPort(bind)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 0, false
	}
	return port, true
}

func logLevel(level string) slog.Leveler {
	var lvl slog.Level

	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	lv := new(slog.LevelVar)
	lv.Set(lvl)
	return lv
}
