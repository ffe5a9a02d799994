package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-hall/internal/config"
	"github.com/iliyamo/cinema-hall/internal/handler"
	"github.com/iliyamo/cinema-hall/internal/inventory"
	"github.com/iliyamo/cinema-hall/internal/logger"
	"github.com/iliyamo/cinema-hall/internal/metrics"
	"github.com/iliyamo/cinema-hall/internal/middleware"
	"github.com/iliyamo/cinema-hall/internal/pricing"
	"github.com/iliyamo/cinema-hall/internal/queue"
	"github.com/iliyamo/cinema-hall/internal/router"
)

func main() {
	cfg := config.Load()
	logger.Set(logger.New(cfg.Env, cfg.LogLevel))
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	hall, err := inventory.NewHall(cfg.HallCapacity)
	if err != nil {
		logger.Fatal("failed to create hall", zap.Error(err))
	}
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub queue.Publisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		amqpPub := queue.NewAMQPPublisher(cfg.AMQPURL)
		defer amqpPub.Close()
		pub = amqpPub
	}
	if cfg.ConsumeEvents {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.EventsLogDir, logger.With(zap.String("component", "seat-events-consumer")))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("seat events consumer stopped", zap.Error(err))
			}
		}()
	}

	rlCfg := config.LoadRateLimitConfig()
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	h := handler.NewSeatHandler(hall, pricing.Price{Amount: cfg.TicketPrice, Currency: cfg.Currency}, pub, m)

	e := echo.New()
	router.Setup(e, m)
	router.RegisterRoutes(e, h)
	router.RegisterSeats(e, h, middleware.NewTokenBucket(rlCfg, rdb))

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.Int("capacity", hall.Capacity()),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
