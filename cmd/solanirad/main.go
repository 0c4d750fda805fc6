// Command solanirad serves the IoT telemetry dashboard.
//
// Usage:
//
//	solanirad [flags]              run the service
//	solanirad watch <events-url>   print a running service's event stream
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/solanirad/api"
	"github.com/vinayprograms/solanirad/config"
	"github.com/vinayprograms/solanirad/dashboard"
	"github.com/vinayprograms/solanirad/feed"
	"github.com/vinayprograms/solanirad/logging"
	"github.com/vinayprograms/solanirad/metrics"
	"github.com/vinayprograms/solanirad/ratelimit"
	"github.com/vinayprograms/solanirad/shutdown"
	"github.com/vinayprograms/solanirad/simulator"
	"github.com/vinayprograms/solanirad/state"
	"github.com/vinayprograms/solanirad/telemetry"
	"github.com/vinayprograms/solanirad/transport"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "watch" {
		if err := watch(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "watch:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := logging.New().WithComponent("solanirad")
	logger.SetLevel(cfg.LogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := shutdown.NewCoordinator(shutdown.Config{
		Timeout:         cfg.HTTP.ShutdownTimeout.Std(),
		ContinueOnError: true,
	}, shutdown.WithLogger(logger.WithComponent("shutdown")))

	m := metrics.New()

	if cfg.TracingEnabled() {
		provider, err := telemetry.InitProvider(ctx, cfg.Provider(version))
		if err != nil {
			logger.Warn("tracing_disabled", map[string]interface{}{"error": err.Error()})
		} else {
			coord.RegisterFunc("tracing", shutdown.PhaseStorage, provider.Shutdown)
		}
	}

	journal, err := telemetry.NewExporter(cfg.Events.Protocol, cfg.Events.Endpoint)
	if err != nil {
		return fmt.Errorf("events journal: %w", err)
	}
	coord.RegisterFunc("journal", shutdown.PhaseStorage, func(context.Context) error {
		return journal.Close()
	})

	store, err := openStore(cfg, coord, logger)
	if err != nil {
		return err
	}
	coord.RegisterFunc("store", shutdown.PhaseStorage, func(context.Context) error {
		return store.Close()
	})

	hub := transport.NewHub(transport.DefaultConfig(),
		transport.WithLogger(logger.WithComponent("transport")),
		transport.WithMetrics(m))

	sub := feed.NewStoreSubscriber(store, cfg.Feed.Key,
		feed.WithLogger(logger.WithComponent("feed")),
		feed.WithMetrics(m))

	limiter := ratelimit.New()
	coord.RegisterFunc("limiter", shutdown.PhaseEngine, func(context.Context) error {
		return limiter.Close()
	})

	engine := dashboard.New(cfg.Engine(), sub, store,
		dashboard.WithLogger(logger.WithComponent("dashboard")),
		dashboard.WithMetrics(m),
		dashboard.WithJournal(journal),
		dashboard.WithPublisher(hub),
		dashboard.WithLimiter(limiter))

	engineCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(engineCtx)
	}()
	coord.RegisterFunc("engine", shutdown.PhaseEngine, func(ctx context.Context) error {
		stopEngine()
		select {
		case err := <-engineDone:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if cfg.Simulator.Enabled {
		sim := simulator.New(store, simulator.Config{
			Interval:   cfg.Simulator.Interval.Std(),
			FeedKey:    cfg.Feed.Key,
			ControlKey: cfg.Feed.ControlKey,
			Seed:       cfg.Simulator.Seed,
		}, simulator.WithLogger(logger.WithComponent("simulator")))
		if err := sim.Start(ctx); err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
		coord.RegisterFunc("simulator", shutdown.PhaseEngine, func(context.Context) error {
			return sim.Stop()
		})
	}

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(api.Config{
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		HistoryCapacity: cfg.Feed.HistorySize,
		Version:         version,
	}, engine, hub,
		api.WithLogger(logger.WithComponent("api")),
		api.WithMetrics(m))

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Std(),
	}
	// Streams must end before the server can drain.
	coord.RegisterFunc("streams", shutdown.PhaseIngress, func(context.Context) error {
		return hub.Close()
	})
	coord.RegisterFunc("http", shutdown.PhaseIngress, httpServer.Shutdown)

	coord.HandleSignals(cancel)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http_listening", map[string]interface{}{
			"addr":    cfg.HTTP.Addr,
			"version": version,
			"store":   cfg.Store.Backend,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		logger.Error("http_failed", map[string]interface{}{"error": err.Error()})
		cancel()
		coord.ShutdownWithTimeout(cfg.HTTP.ShutdownTimeout.Std())
		return err
	case <-coord.Done():
	}

	if res := coord.Result(); res != nil && len(res.FailedHandlers()) > 0 {
		return fmt.Errorf("shutdown: %d handler(s) failed: %v", len(res.FailedHandlers()), res.FailedHandlers())
	}
	logger.Info("stopped")
	return nil
}

// openStore connects the configured backend. The NATS connection is closed
// after the store in the storage phase.
func openStore(cfg *config.Config, coord *shutdown.Coordinator, logger *logging.Logger) (state.StateStore, error) {
	switch cfg.Store.Backend {
	case config.BackendNATS:
		nc, err := nats.Connect(cfg.Store.NATSURL,
			nats.Name("solanirad"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats_disconnected", map[string]interface{}{"error": err.Error()})
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("nats_reconnected", map[string]interface{}{"url": c.ConnectedUrl()})
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		store, err := state.NewNATSStore(state.NATSStoreConfig{
			Conn:      nc,
			Bucket:    cfg.Store.Bucket,
			OpTimeout: cfg.Store.OpTimeout.Std(),
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("open kv bucket %q: %w", cfg.Store.Bucket, err)
		}
		coord.RegisterFunc("nats", shutdown.PhaseStorage+1, func(context.Context) error {
			return nc.Drain()
		})
		return store, nil
	default:
		return state.NewMemoryStore(), nil
	}
}
