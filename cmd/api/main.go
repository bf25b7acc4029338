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
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/herald/internal/config"
	"github.com/jwalitptl/herald/internal/handler"
	eventHandler "github.com/jwalitptl/herald/internal/handler/event"
	notificationHandler "github.com/jwalitptl/herald/internal/handler/notification"
	"github.com/jwalitptl/herald/internal/middleware"
	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/repository/postgres"
	"github.com/jwalitptl/herald/internal/router"
	"github.com/jwalitptl/herald/internal/sender"
	eventService "github.com/jwalitptl/herald/internal/service/event"
	notificationService "github.com/jwalitptl/herald/internal/service/notification"
	userService "github.com/jwalitptl/herald/internal/service/user"
	"github.com/jwalitptl/herald/internal/template"
	"github.com/jwalitptl/herald/pkg/logger"
	redisBroker "github.com/jwalitptl/herald/pkg/messaging/redis"
)

func main() {
	zl := zerolog.New(os.Stdout).With().Timestamp().Str("service", "herald-api").Logger()
	log := logger.FromZerolog(zl)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
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

	// The API never delivers; senders exist here only so in-app events
	// created synchronously share the same service wiring.
	senders := sender.Registry{
		model.ChannelInApp: func() sender.Sender { return sender.NewInAppSender(broker) },
	}

	policy := notificationService.Policy{
		MaxAttempts:   cfg.Worker.MaxAttempts,
		RetryDelay:    cfg.Worker.RetryDelay,
		SenderTimeout: cfg.Worker.SenderTimeout,
	}
	notificationSvc := notificationService.NewService(notificationRepo, userSvc, senders, policy, log)
	eventSvc := eventService.NewService(userSvc, notificationSvc, template.NewRegistry(), log)

	identity := middleware.NewIdentity(userSvc, log)
	h := handler.NewHandler(db)
	eventH := eventHandler.NewHandler(eventSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc, broker, log)

	r := router.NewRouter(identity, eventH, notificationH, h, router.Config{
		RateLimit:     rate.Limit(50),
		RateBurst:     100,
		MetricsPrefix: "herald_api",
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
