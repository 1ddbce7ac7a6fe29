package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/elviDev/ls-internet-radio-sub002/internal/broadcast"
	"github.com/elviDev/ls-internet-radio-sub002/internal/chat"
	"github.com/elviDev/ls-internet-radio-sub002/internal/config"
	"github.com/elviDev/ls-internet-radio-sub002/internal/handler"
	"github.com/elviDev/ls-internet-radio-sub002/internal/hub"
	"github.com/elviDev/ls-internet-radio-sub002/internal/kafka"
	"github.com/elviDev/ls-internet-radio-sub002/internal/persist"
	"github.com/elviDev/ls-internet-radio-sub002/internal/registry"
	"github.com/elviDev/ls-internet-radio-sub002/internal/service"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/auth"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting broadcast coordinator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Redis live registry.
	var liveReg service.LiveRegistry
	if cfg.Redis.Enabled {
		redisReg, err := registry.NewRedisRegistry(cfg.Redis, cfg.Server.AdvertiseAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis registry")
		}
		defer redisReg.Close()
		if err := redisReg.StartHeartbeat(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start redis heartbeat")
		}
		defer redisReg.StopHeartbeat()
		liveReg = redisReg
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}

	// Optional Kafka lifecycle events.
	var producer kafka.EventProducer
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		producer = p
		logger.Info().
			Str("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("connected to kafka")
	}

	// Optional persistence collaborator.
	var persistClient *persist.Client
	if cfg.Persist.BaseURL != "" {
		persistClient = persist.NewClient(cfg.Persist.BaseURL, cfg.Persist.Timeout)
		logger.Info().Str("base_url", cfg.Persist.BaseURL).Msg("persistence collaborator configured")
	}

	// Optional JWT identity verification.
	var verifier *auth.Verifier
	if cfg.Auth.Secret != "" {
		verifier = auth.NewVerifier(cfg.Auth.Secret)
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	connections := registry.NewConnectionRegistry()
	manager := broadcast.NewManager(wsHub)
	store := chat.NewStore(cfg.Chat.Retention)
	typing := chat.NewTypingTracker()

	broadcastSvc := service.NewBroadcastService(
		wsHub, manager, connections, liveReg, producer, verifier, store, cfg.Session.CallTimeout,
	)
	chatSvc := service.NewChatService(wsHub, store, typing, persistClient, manager, cfg.Session.TypingTTL)

	if err := broadcastSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start broadcast service")
	}
	defer broadcastSvc.Stop()

	// Periodic work: call timeouts, typing expiry, stats fan-out.
	scheduler := cron.New()
	mustSchedule(scheduler, cfg.Session.CallSweepInterval, broadcastSvc.SweepCallTimeouts)
	mustSchedule(scheduler, cfg.Session.TypingSweep, chatSvc.SweepTyping)
	mustSchedule(scheduler, cfg.Session.StatsInterval, broadcastSvc.PublishStats)
	scheduler.Start()
	defer scheduler.Stop()

	wsHandler := handler.NewWSHandler(wsHub, broadcastSvc, chatSvc, connections, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(manager)

	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(logger))
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		case <-gctx.Done():
		}

		// Tell every live session it is going away before sockets close.
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
		broadcastSvc.Drain(drainCtx)
		drainCancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("broadcast coordinator stopped")
}

func mustSchedule(scheduler *cron.Cron, interval time.Duration, job func()) {
	if interval <= 0 {
		return
	}
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), job); err != nil {
		log.L().Fatal().Err(err).Dur("interval", interval).Msg("failed to schedule job")
	}
}
