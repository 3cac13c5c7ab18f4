// Package idempotency реализует durable кэш результатов выполненных
// операций, схлопывающий повторы одной логической операции в один
// эффект.
//
// Ключ операции детерминированный: hash от типа операции, tenant и
// бизнес-идентификаторов, без времени. Запись создаётся атомарно при
// первом успешном завершении — конкурирующие попытки решаются на
// unique-констрейнте Postgres, а не через отдельные check и store.
//
// TTL зависит от класса операции: эфемерные записи живут сутки,
// операции с постоянным внешним эффектом (минт NFT, захват оплаты) —
// год. Истёкшие записи удаляет Reaper по cron-расписанию.
package idempotency
