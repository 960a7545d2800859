package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/personnel-backoffice/internal/adapters/grpc/handler"
	"github.com/ogurasousui/personnel-backoffice/internal/adapters/repository/postgres"
	"github.com/ogurasousui/personnel-backoffice/internal/core/cache"
	"github.com/ogurasousui/personnel-backoffice/internal/core/cascade"
	"github.com/ogurasousui/personnel-backoffice/internal/core/person"
	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/core/workspace"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/config"
	pg "github.com/ogurasousui/personnel-backoffice/internal/platform/db/postgres"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/metrics"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l, err := logger.New(logger.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	if err := run(ctx, cfg, l); err != nil {
		l.Errorw("server stopped with error", "error", err)
		_ = l.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	dbPool, err := pg.NewPool(ctx, cfg.Database, pg.WithQueryLogger(l, tracelog.LogLevelWarn))
	if err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}
	defer dbPool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mode, err := cascade.ParseMode(cfg.Workspace.CascadeMode)
	if err != nil {
		return err
	}

	txManager := pg.NewTransactionManager(dbPool, pg.WithTxLogger(l))
	recordRepo := postgres.NewRecordRepository(dbPool)
	sanctionRule := cascade.NewSanctionAbsenceRule(recordRepo, nil, mode)
	recordSvc := record.NewService(recordRepo, nil, txManager, sanctionRule)
	personSvc := person.NewService(postgres.NewPersonRepository(dbPool), nil)

	recordCache, err := cache.New(cache.ServiceLoader(recordSvc),
		cache.WithTTL(cfg.Cache.TTL, cfg.Cache.CleanupInterval),
		cache.WithGraph(cache.GraphFromEffects(recordSvc.Effects()...)),
		cache.WithLogger(l),
		cache.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}

	sessions := workspace.NewManager(workspace.ManagerConfig{
		SessionTTL:      cfg.Workspace.SessionTTL,
		DefaultPageSize: cfg.Workspace.DefaultPageSize,
		MaxPageSize:     cfg.Workspace.MaxPageSize,
	}, workspace.Dependencies{
		Records: recordSvc,
		Cache:   recordCache,
		Projector: projection.New(
			projection.WithLocale(cfg.Workspace.LanguageTag()),
			projection.WithDefaultPageSize(cfg.Workspace.DefaultPageSize),
		),
		Metrics: m,
		Logger:  l,
	})

	grpcServer := server.New(cfg.Server.ListenAddr, handler.NewBackofficeHandler(sessions, personSvc), l)

	l.Infow("starting backoffice",
		"listen_addr", cfg.Server.ListenAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"cascade_mode", mode,
		"locale", cfg.Workspace.Locale,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Run(gctx)
	})
	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Server.MetricsAddr, reg, l)
		})
	}
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, l *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Warnw("metrics server shutdown", "error", err)
		}
	}()

	l.Infow("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
