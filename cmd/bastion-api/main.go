// Bastion API — операторский HTTP API ядра устойчивости.
//
// Предоставляет endpoints для разбора DLQ (list, stats, retry, bulk),
// управления распределёнными rate limiters (check, reset, emergency
// stop) и просмотра circuit breakers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Bastion/internal/api"
	"github.com/shaiso/Bastion/internal/breaker"
	"github.com/shaiso/Bastion/internal/config"
	"github.com/shaiso/Bastion/internal/dlq"
	"github.com/shaiso/Bastion/internal/mq"
	"github.com/shaiso/Bastion/internal/ratelimit"
	"github.com/shaiso/Bastion/internal/repo"
	"github.com/shaiso/Bastion/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bastion_api_http_requests_total",
		Help: "Total HTTP requests handled by bastion_api",
	})
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting bastion-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, repo.PoolConfig{
		DSN:      cfg.PostgresDSN,
		MaxConns: cfg.PostgresMaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// RabbitMQ нужен для retry записей DLQ.
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

	deadLetters := dlq.New(dlq.Config{
		Store:     repo.NewDLQRepo(pool),
		Publisher: mq.NewPublisher(mqConn, logger),
		Logger:    logger,
	})

	// Limiter без сконфигурированных лимитов: API процесс только
	// читает и сбрасывает buckets, созданные worker'ами.
	limiter := ratelimit.New(repo.NewLimiterRepo(pool), nil, logger)

	// Breakers процесс-локальные: в API процессе реестр пуст,
	// живое состояние видно на ops-порту каждого worker'а.
	handler := api.NewHandler(api.Config{
		DLQ:      deadLetters,
		Limiter:  limiter,
		Breakers: breaker.NewRegistry(breaker.Config{Logger: logger}),
		Logger:   logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
