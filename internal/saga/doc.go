// Package saga координирует многошаговые бизнес-операции с явным
// per-step откатом вместо транзакции на всю БД.
//
// Типичный сценарий: резерв билетов → захват оплаты → запись заказа.
// Если захват оплаты упал, резерв снимается компенсацией — строго
// в обратном порядке выполнения.
//
// Результат шага не передаётся на вход следующему шагу — только в
// компенсацию самого шага. Шаги, которым нужны данные друг друга,
// захватывают общие переменные через замыкания.
package saga
