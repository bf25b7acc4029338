package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/herald/internal/config"
	"github.com/jwalitptl/herald/internal/repository/postgres"
	"github.com/jwalitptl/herald/internal/sender"
	notificationService "github.com/jwalitptl/herald/internal/service/notification"
	userService "github.com/jwalitptl/herald/internal/service/user"
	"github.com/jwalitptl/herald/internal/worker"
	"github.com/jwalitptl/herald/pkg/logger"
	"github.com/jwalitptl/herald/pkg/metrics"
	redisBroker "github.com/jwalitptl/herald/pkg/messaging/redis"
)

func main() {
	zl := zerolog.New(os.Stdout).With().Timestamp().Str("service", "herald-worker").Logger()
	log := logger.FromZerolog(zl)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	senderCfg, err := config.LoadSenderConfig()
	if err != nil {
		log.Fatal(err, "failed to load sender configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	userRepo := postgres.NewUserRepository(base)

	userSvc := userService.NewService(userRepo, cfg.Events.ActiveWindow, log)
	senders := sender.NewRegistry(senderCfg, broker)

	policy := notificationService.Policy{
		MaxAttempts:   cfg.Worker.MaxAttempts,
		RetryDelay:    cfg.Worker.RetryDelay,
		SenderTimeout: cfg.Worker.SenderTimeout,
	}
	notificationSvc := notificationService.NewService(notificationRepo, userSvc, senders, policy, log)

	m := metrics.NewMetrics("herald")
	pool := worker.NewPool(notificationSvc, worker.Config{
		Workers:     cfg.Worker.Workers,
		BatchSize:   cfg.Worker.BatchSize,
		IdleBackoff: cfg.Worker.IdleBackoff,
	}, log, m)

	// Metrics and health on a side port so the pool owns the main loop.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start metrics server")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down workers...")
		cancel()
	}()

	log.Info("starting delivery workers",
		"workers", cfg.Worker.Workers,
		"batch_size", cfg.Worker.BatchSize,
	)
	pool.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "metrics server forced to shutdown")
	}

	log.Info("workers exited properly")
}
