package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"templateshop/internal/config"
	"templateshop/internal/gateway"
	"templateshop/internal/infra/cache"
	"templateshop/internal/infra/db"
	"templateshop/internal/infra/outbox"
	infraRepo "templateshop/internal/infra/repository"
	"templateshop/internal/logging"
	"templateshop/internal/repository"
	"templateshop/internal/server"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい（本番は環境変数を直接渡す）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	//DB接続
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//注文キャッシュ（REDIS_ADDRが無ければ使わない）
	var orderCache repository.OrderCache = cache.NoopOrderCache{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis unavailable, order cache disabled", "addr", cfg.Redis.Addr, "err", err)
		} else {
			orderCache = cache.NewRedisOrderCache(rdb, cfg.Redis.CacheTTL)
		}
	}

	//決済ゲートウェイ
	var (
		gw   gateway.Gateway
		fake *gateway.FakeGateway
	)
	switch cfg.Gateway.Mode {
	case "http":
		gw = gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)
	default:
		fake = gateway.NewFakeGateway(cfg.Gateway.WebhookSecret)
		gw = fake
		log.Warn("using in-process fake payment gateway")
	}
	gw = gateway.NewBreakerGateway(gw, gateway.BreakerSettings{
		ConsecutiveFailures: cfg.Gateway.BreakerFailures,
		OpenTimeout:         cfg.Gateway.BreakerOpenTimeout,
	}, log)

	h := server.BuildHandlers(cfg, server.Deps{
		DB:       gormDB,
		Gateway:  gw,
		Fake:     fake,
		Cache:    orderCache,
		Verifier: gateway.NewVerifier(cfg.Gateway.WebhookSecret, cfg.Gateway.SignatureTolerance),
	}, log)
	srv := server.New(cfg, log, h)

	//outbox -> Kafka
	var writer outbox.MessageWriter = outbox.DiscardWriter{}
	if len(cfg.Kafka.Brokers) > 0 {
		writer = outbox.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox events are marked published without delivery")
	}
	publisher := outbox.NewPoller(
		infraRepo.NewOutboxGormRepository(gormDB),
		infraRepo.NewPaymentIntentGormRepository(gormDB),
		writer, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize, log,
	)
	defer func() { _ = publisher.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTP.Addr())
		return srv.Start()
	})
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
