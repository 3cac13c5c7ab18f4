// Package api содержит операторский HTTP API.
//
// Структура:
//   - handler.go         — Handler с DI (сервисы, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - dlq_handler.go     — обработчики для /dlq
//   - limiter_handler.go — обработчики для /limiters
//   - breaker_handler.go — обработчики для /breakers
//
// API предоставляет REST endpoints для операторских действий: разбор
// DLQ, управление rate limiters и circuit breakers.
package api
