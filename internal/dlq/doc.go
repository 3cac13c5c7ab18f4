// Package dlq реализует dead-letter queue: durable сток для jobs,
// исчерпавших бюджет попыток.
//
// Запись DLQ хранит оригинальный job байт-в-байт вместе с ошибкой и
// количеством попыток — оператор видит полный контекст и может
// перезапустить job без изменений (Retry, BulkRetry) или удалить
// (BulkDelete). Для критических очередей (payments) запись в DLQ
// дополнительно поднимает алерт через внешний канал; сбой алертинга
// не влияет на саму запись.
package dlq
