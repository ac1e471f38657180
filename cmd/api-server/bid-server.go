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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bidtracker/config"
	"bidtracker/db"
	"bidtracker/db/migrations"
	"bidtracker/internal/handlers"
	"bidtracker/internal/logging"
	"bidtracker/internal/metrics"
	"bidtracker/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Cannot init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Prefix, reg)

	notifier, err := newNotifier(ctx, cfg.Notify, logger)
	if err != nil {
		logger.Fatal("notifier init failed", zap.Error(err))
	}

	store := db.NewStorage(dbConn, db.WithMetrics(m))
	h := handlers.NewHandler(store,
		handlers.WithNotifier(notifier),
		handlers.WithMetrics(m),
		handlers.WithLinks(cfg.Links.TTL, cfg.Links.PublicBaseURL),
	)

	r := handlers.NewRouter(h, logger)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Address), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newNotifier(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.Backend != "ses" {
		return notify.NewLogNotifier(logger), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return notify.NewSESNotifier(awsCfg, cfg.FromEmail, cfg.ToEmail), nil
}
