// Bastion Worker — обрабатывает фоновые jobs билетной платформы.
//
// Worker:
//   - Получает jobs из RabbitMQ (payments, minting, notifications)
//   - Прогоняет каждую доставку через конвейер устойчивости:
//     idempotency, rate limit, circuit breaker
//   - Повторяет временные сбои с exponential backoff
//   - Исчерпавшие бюджет jobs переносит в durable DLQ
//
// Workers масштабируются горизонтально; общий лимит внешних сервисов
// координируется через Postgres.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Bastion/internal/api"
	"github.com/shaiso/Bastion/internal/breaker"
	"github.com/shaiso/Bastion/internal/config"
	"github.com/shaiso/Bastion/internal/dlq"
	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/gateway"
	"github.com/shaiso/Bastion/internal/harness"
	"github.com/shaiso/Bastion/internal/idempotency"
	"github.com/shaiso/Bastion/internal/mq"
	"github.com/shaiso/Bastion/internal/processors"
	"github.com/shaiso/Bastion/internal/ratelimit"
	"github.com/shaiso/Bastion/internal/repo"
	"github.com/shaiso/Bastion/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting bastion-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfig{
		DSN:      cfg.PostgresDSN,
		MaxConns: cfg.PostgresMaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)
	logger.Info("RabbitMQ connected")

	// Метрики
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Idempotency store + reaper
	idemRepo := repo.NewIdempotencyRepo(pool)
	idemStore := idempotency.NewStore(idemRepo, logger)
	reaper := idempotency.NewReaper(idemRepo, idempotency.ReaperConfig{
		Schedule: cfg.ReapSchedule,
		Logger:   logger,
	})
	if err := reaper.Start(); err != nil {
		logger.Error("failed to start reaper", "error", err)
		os.Exit(1)
	}
	defer reaper.Stop()

	// Rate limiter: общий на все worker-процессы через Postgres.
	limiter := ratelimit.New(repo.NewLimiterRepo(pool), []ratelimit.ServiceLimit{
		{Service: "stripe", BucketSize: cfg.StripeBurst, RefillRate: cfg.StripeRate, MaxConcurrent: cfg.StripeMaxConcurrent},
		{Service: "solana", BucketSize: cfg.SolanaBurst, RefillRate: cfg.SolanaRate, MaxConcurrent: cfg.SolanaMaxConcurrent},
		{Service: "mailer", BucketSize: cfg.MailerBurst, RefillRate: cfg.MailerRate, MaxConcurrent: cfg.MailerMaxConcurrent},
	}, logger)
	if err := limiter.EnsureBuckets(ctx); err != nil {
		logger.Error("failed to ensure limiter buckets", "error", err)
		os.Exit(1)
	}

	// Circuit breakers: процесс-локальные, по одному на внешний сервис.
	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
		OperationTimeout: cfg.BreakerOperationTimeout,
		Logger:           logger,
	})

	// DLQ: критическая очередь payments алертится в webhook.
	var alerter dlq.Alerter
	if cfg.AlertWebhookURL != "" {
		alerter = dlq.NewWebhookAlerter(cfg.AlertWebhookURL)
	}
	deadLetters := dlq.New(dlq.Config{
		Store:     repo.NewDLQRepo(pool),
		Publisher: publisher,
		Alerter:   alerter,
		Logger:    logger,
	})

	// Внешние сервисы
	stripe, err := gateway.NewStripeClient(gateway.ClientConfig{BaseURL: cfg.StripeBaseURL, APIKey: cfg.StripeAPIKey})
	if err != nil {
		logger.Error("stripe client", "error", err)
		os.Exit(1)
	}
	minter, err := gateway.NewSolanaClient(gateway.ClientConfig{BaseURL: cfg.MinterBaseURL, APIKey: cfg.MinterAPIKey})
	if err != nil {
		logger.Error("minter client", "error", err)
		os.Exit(1)
	}
	inventory, err := gateway.NewInventoryClient(gateway.ClientConfig{BaseURL: cfg.InventoryBaseURL, APIKey: cfg.InventoryAPIKey})
	if err != nil {
		logger.Error("inventory client", "error", err)
		os.Exit(1)
	}
	mailer, err := gateway.NewMailerClient(gateway.ClientConfig{BaseURL: cfg.MailerBaseURL, APIKey: cfg.MailerAPIKey})
	if err != nil {
		logger.Error("mailer client", "error", err)
		os.Exit(1)
	}

	// Processors
	registry := harness.NewRegistry()
	processors.Register(registry, processors.Deps{
		Payments:  stripe,
		Inventory: inventory,
		Minter:    minter,
		Notifier:  mailer,
		Logger:    logger,
	})

	h := harness.New(registry, idemStore, limiter, breakers, deadLetters, metrics, logger, harness.Config{})

	// Consumers: по одному на очередь, prefetch задаёт конкурентность.
	// Payments обрабатывается выделенным небольшим пулом.
	concurrency := map[domain.Queue]int{
		domain.QueuePayments:      cfg.PaymentsConcurrency,
		domain.QueueMinting:       cfg.MintingConcurrency,
		domain.QueueNotifications: cfg.NotificationsConcurrency,
	}
	handler := func(ctx context.Context, d *mq.Delivery) {
		go h.Handle(ctx, d.Job, d.Body, d)
	}
	for queue, prefetch := range concurrency {
		consumer := mq.NewConsumer(mqConn, publisher, logger, mq.ConsumerConfig{
			Queue:    queue,
			Handler:  handler,
			Prefetch: prefetch,
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("consumer stopped", "error", err)
				cancel()
			}
		}()
	}

	// Операционный HTTP: /healthz, /metrics и операторский API
	// с live-состоянием breakers этого процесса.
	opsHandler := api.NewHandler(api.Config{
		DLQ:      deadLetters,
		Limiter:  limiter,
		Breakers: breakers,
		Logger:   logger,
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	opsHandler.RegisterRoutes(mux)

	go func() {
		logger.Info("listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем приём и даём in-flight jobs дорисоваться.
	h.Stop(cfg.DrainTimeout)
	logger.Info("bastion-worker stopped")
}
