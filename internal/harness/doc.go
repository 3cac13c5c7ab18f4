// Package harness — конвейер обработки jobs, связывающий механизмы
// устойчивости в единый контур.
//
// Каждая доставка проходит цепочку: валидация, проверка idempotency,
// rate limit внешнего сервиса, вызов processor'а через circuit breaker.
// По итогу доставка получает ровно одну терминальную операцию: ack,
// перенос с backoff, перенос без списания попытки или запись в DLQ.
//
// Включает:
//   - harness.go — конвейер и учёт in-flight jobs при shutdown
//   - registry.go — реестр processors по типу job
//   - errors.go — ошибки пакета
package harness
