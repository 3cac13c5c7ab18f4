// Package telemetry обеспечивает наблюдаемость ядра устойчивости.
//
// Включает:
//   - logging.go — structured logging через slog, контекстные поля job
//   - metrics.go — Prometheus метрики конвейера обработки jobs
//
// Оба процесса (worker и API) используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
