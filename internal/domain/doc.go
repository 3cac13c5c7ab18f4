// Package domain содержит основные модели ядра обработки jobs.
//
// Включает:
//   - Job — единица работы, доставляемая транспортом очереди
//   - JobKind и типизированные payloads (payment, mint, notification)
//   - RetryPolicy — политика повторов с exponential backoff + jitter
//   - IdempotencyRecord, LimiterBucket, DeadLetterEntry — разделяемое
//     состояние, хранящееся в реляционной БД
//
// Пакет не зависит от инфраструктуры (БД, MQ) — только модели и
// чистая логика переходов статусов.
package domain
