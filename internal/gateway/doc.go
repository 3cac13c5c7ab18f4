// Package gateway — HTTP-клиенты внешних сервисов платформы.
//
// Каждый клиент оборачивает один внешний API: платёжный провайдер,
// минт-сервис NFT-билетов, inventory-сервис билетной платформы и
// почтовый шлюз. Клиенты классифицируют ответы: ошибки 4xx (кроме
// 408 и 429) необратимы и помечаются domain.NonRetryable, остальные
// сбои считаются временными и подлежат повтору.
//
// Включает:
//   - client.go — общий JSON HTTP транспорт
//   - stripe.go — платёжный провайдер
//   - solana.go — минт-сервис NFT-билетов
//   - inventory.go — inventory-сервис билетов
//   - mailer.go — почтовый шлюз
//   - errors.go — ошибки пакета
package gateway
