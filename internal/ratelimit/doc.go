// Package ratelimit реализует распределённый token bucket для внешних
// rate-limited API (Stripe, Solana RPC, почтовый шлюз).
//
// Bucket на (service, tenant) живёт строкой в rate_limiters и мутируется
// в одной транзакции под SELECT ... FOR UPDATE: конкурирующие воркеры
// из разных процессов сериализуются на row lock и не могут совместно
// превысить bucket_size или max_concurrent.
//
// Отказ в токене — не ошибка: caller получает WaitTime и переносит job
// на вычисленную задержку вместо слепого retry.
package ratelimit
