// Package app wires the arena, catalog, logging and transport into a running
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdnet "net"
	"net/http"
	"sync/atomic"
	"time"

	"spellcast/server/internal/arena"
	"spellcast/server/internal/catalog"
	"spellcast/server/internal/config"
	servernet "spellcast/server/internal/net"
	"spellcast/server/internal/net/ws"
	"spellcast/server/internal/observability"
	"spellcast/server/internal/telemetry"
	"spellcast/server/logging"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Logger *log.Logger
	// Ready, if set, receives the bound listen address once the server accepts
	// connections.
	Ready func(addr string)
}

func Run(ctx context.Context, cfg config.Config, opts Options) error {
	fallbackLogger := opts.Logger
	if fallbackLogger == nil {
		fallbackLogger = log.Default()
	}
	telemetryLogger := telemetry.WrapLogger(fallbackLogger)

	faults, err := cfg.Faults()
	if err != nil {
		return err
	}

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "spellcast",
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			telemetryLogger.Printf("failed to flush traces: %v", err)
		}
	}()

	logConfig := cfg.Logging()
	named, err := buildSinks(logConfig)
	if err != nil {
		return fmt.Errorf("failed to construct log sinks: %w", err)
	}
	feed := ws.NewFeed(0)
	named = append(named, logging.NamedSink{Name: "feed", Sink: feed})

	router := logging.NewRouter(logConfig, logging.SystemClock{}, fallbackLogger, named...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	var host atomic.Pointer[arena.Arena]
	tick := func() uint64 {
		if a := host.Load(); a != nil {
			return a.Tick()
		}
		return 0
	}
	effects := NewEffects(router, tick)

	abilities, err := catalog.Load(effects, cfg.Catalog...)
	if err != nil {
		return fmt.Errorf("failed to load ability catalog: %w", err)
	}
	if abilities.Len() == 0 {
		telemetryLogger.Printf("ability catalog is empty (paths %v)", cfg.Catalog)
	}

	counters := telemetry.NewCounters()
	a, err := arena.New(arena.Config{
		TickRate:        cfg.TickRate,
		CommandCapacity: cfg.CommandCapacity,
		FaultPolicy:     faults,
	}, arena.Deps{
		Abilities:  abilities,
		Dispatcher: effects,
		Publisher:  router,
		Logger:     telemetryLogger,
		Metrics:    counters,
	})
	if err != nil {
		return fmt.Errorf("failed to construct arena: %w", err)
	}
	host.Store(a)

	handler := servernet.NewHTTPHandler(a, servernet.HTTPHandlerConfig{
		Logger:   fallbackLogger,
		TickRate: cfg.TickRate,
		Feed:     feed,
		Catalog:  abilities,
		Router:   router,
		Counters: counters,
	})

	listener, err := stdnet.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	arenaDone := make(chan error, 1)
	go func() { arenaDone <- a.Run(runCtx) }()

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(listener) }()

	telemetryLogger.Printf("server listening on %s (%d abilities, tick rate %d)", listener.Addr(), abilities.Len(), cfg.TickRate)
	if opts.Ready != nil {
		opts.Ready(listener.Addr().String())
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-serveDone:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	stop()
	if err := <-arenaDone; err != nil {
		telemetryLogger.Printf("arena loop: %v", err)
	}
	return serveErr
}
