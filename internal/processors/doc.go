// Package processors — бизнес-обработчики jobs билетной платформы.
//
// Многошаговые операции (захват оплаты, минт NFT-билета) выполняются
// через saga.Coordinator: частичный сбой откатывает уже выполненные
// внешние эффекты в обратном порядке. Одношаговые операции вызывают
// внешний сервис напрямую.
//
// Включает:
//   - processors.go — интерфейсы внешних сервисов и регистрация
//   - payment.go — захват оплаты и возврат средств
//   - mint.go — минт NFT-билета
//   - notification.go — отправка уведомлений
package processors
