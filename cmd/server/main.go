package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"fleet-tracking/internal/broadcast"
	"fleet-tracking/internal/config"
	"fleet-tracking/internal/geofence"
	"fleet-tracking/internal/handlers"
	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/metrics"
	"fleet-tracking/internal/repository"
	"fleet-tracking/internal/tracking"
)

type directory interface {
	tracking.Directory
	handlers.TokenResolver
}

type stores struct {
	positions tracking.PositionStore
	sessions  tracking.SessionStore
	directory directory
	health    func(ctx context.Context) error
	close     func() error
}

func main() {
	envFile := pflag.String("env-file", ".env", "path to an env file")
	addr := pflag.String("addr", "", "listen address, overrides HTTP_ADDR")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewPrometheus(registry, "fleet")
	if err != nil {
		log.Fatalf("metrics error: %v", err)
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() { _ = st.close() }()

	fences, err := loadGeofences(cfg, logger)
	if err != nil {
		log.Fatalf("geofence error: %v", err)
	}

	hub := broadcast.NewHub(logger.With("component", "hub"), collector)
	var publisher broadcast.Publisher = hub
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("fleet-tracking"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			log.Fatalf("nats connect error: %v", err)
		}
		defer nc.Close()

		bridge := broadcast.NewNATSBridge(nc, hub, cfg.NATSSubjectPrefix, logger.With("component", "nats"))
		if err := bridge.Start(); err != nil {
			log.Fatalf("nats bridge error: %v", err)
		}
		defer func() { _ = bridge.Close() }()
		publisher = bridge
		logger.Info("nats bridge started", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	}

	opts := []tracking.Option{
		tracking.WithLogger(logger.With("component", "tracking")),
		tracking.WithMetrics(collector),
		tracking.WithGeofenceTimeout(cfg.GeofenceTimeout),
	}
	gateway := tracking.NewGateway(st.positions, st.directory, fences, publisher, opts...)
	sessions := tracking.NewSessionManager(st.sessions, st.directory, publisher, opts...)
	queries := tracking.NewQueryService(st.positions, sessions)

	router := handlers.NewRouter(handlers.RouterConfig{
		Positions: gateway,
		Sessions:  sessions,
		Queries:   queries,
		Tokens:    st.directory,
		WebSocket: broadcast.ServeWS(hub, broadcast.WSConfig{}, logger.With("component", "ws")),
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Health:    st.health,
		RateLimit: rate.Limit(cfg.RateLimitPerSec),
		RateBurst: cfg.RateLimitBurst,
		Logger:    logger.With("component", "http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "backend", cfg.StoreBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func openStores(cfg config.Config, logger logging.Logger) (stores, error) {
	if cfg.StoreBackend == repository.BackendMemory {
		dir := repository.NewStaticDirectory(repository.DirectoryFile{})
		if cfg.DirectoryFile != "" {
			loaded, err := repository.LoadDirectoryFile(cfg.DirectoryFile)
			if err != nil {
				return stores{}, err
			}
			dir = loaded
		} else {
			logger.Warn("memory backend without DIRECTORY_FILE; every worker is unknown")
		}

		return stores{
			positions: repository.NewMemoryPositionStore(),
			sessions:  repository.NewMemorySessionStore(),
			directory: dir,
			close:     func() error { return nil },
		}, nil
	}

	db, err := repository.ConnectWithRetry(cfg.StoreBackend, cfg.DBDSN, cfg.DBConnectAttempts, cfg.DBConnectDelay)
	if err != nil {
		return stores{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return stores{}, err
	}

	return stores{
		positions: repository.NewPositionRepository(db),
		sessions:  repository.NewSessionRepository(db),
		directory: repository.NewDirectoryRepository(db),
		health:    sqlDB.PingContext,
		close:     sqlDB.Close,
	}, nil
}

func loadGeofences(cfg config.Config, logger logging.Logger) (geofence.Evaluator, error) {
	if cfg.GeofenceFile == "" {
		return geofence.Nop{}, nil
	}
	e, err := geofence.LoadFile(cfg.GeofenceFile)
	if err != nil {
		return nil, err
	}
	logger.Info("geofences loaded", "file", cfg.GeofenceFile, "boundaries", e.Len())
	return e, nil
}
