package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/teamchat-service/internal/auth"
	"github.com/fathima-sithara/teamchat-service/internal/config"
	"github.com/fathima-sithara/teamchat-service/internal/events"
	"github.com/fathima-sithara/teamchat-service/internal/gateway"
	"github.com/fathima-sithara/teamchat-service/internal/handlers"
	"github.com/fathima-sithara/teamchat-service/internal/logger"
	"github.com/fathima-sithara/teamchat-service/internal/routes"
	"github.com/fathima-sithara/teamchat-service/internal/store"
	"github.com/fathima-sithara/teamchat-service/internal/sweeper"
	"github.com/fathima-sithara/teamchat-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("jwt secret is required")
	}

	lg, err := logger.New(logger.Config{Development: cfg.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		lg.Fatalw("db open failed", "err", err)
	}
	if err := store.Migrate(db); err != nil {
		lg.Fatalw("db migrate failed", "err", err)
	}
	if err := store.SeedReactionCatalog(db); err != nil {
		lg.Fatalw("catalog seed failed", "err", err)
	}

	chats := store.NewChatStore(db, lg)
	presence := store.NewPresenceStore(db, cfg.StaleAfter)
	tokens := auth.NewManager(cfg.JWT.Secret)

	hub := ws.NewHub()
	var broadcaster ws.Broadcaster = hub
	var bridge *ws.RedisBridge
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bridge = ws.NewRedisBridge(hub, rdb, cfg.Redis.Channel, lg)
		broadcaster = bridge
		lg.Infow("redis fan-out enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	producer := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg)

	gw := gateway.New(broadcaster, chats, presence, tokens, producer, lg, gateway.Options{
		PingInterval:     cfg.PingInterval,
		ReadDeadline:     cfg.ReadDeadline,
		MaxMessageSize:   cfg.WS.MaxMessageSizeBytes,
		ActionsPerSecond: cfg.WS.ActionsPerSecond,
	})

	chatHandler := handlers.NewChatHandler(chats, broadcaster, producer, lg)
	presenceHandler := handlers.NewPresenceHandler(presence, broadcaster, lg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	routes.Register(app, tokens, chatHandler, presenceHandler, gw)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx, presence, cfg.SweepInterval, lg)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		lg.Infow("starting teamchat service", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		lg.Fatalw("server error", "err", e)
	case s := <-sig:
		lg.Infow("signal received", "signal", s.String())
	}

	stopSweep()
	if err := app.Shutdown(); err != nil {
		lg.Warnw("fiber shutdown", "err", err)
	}
	hub.Close()
	if bridge != nil {
		bridge.Close()
	}
	if err := producer.Close(); err != nil {
		lg.Warnw("producer close", "err", err)
	}
	lg.Info("shut down")
}
