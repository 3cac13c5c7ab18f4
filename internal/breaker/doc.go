// Package breaker реализует circuit breaker для внешних зависимостей.
//
// Breaker защищает callers от каскадных сбоев: после FailureThreshold
// последовательных сбоев вызовы к зависимости отклоняются сразу
// (short-circuit), без расхода таймаутов и нагрузки на и так лежащий
// сервис. После ResetTimeout breaker переходит в пробный режим
// HALF_OPEN и закрывается после SuccessThreshold успехов.
//
// Состояние процесс-локальное — каждый worker-процесс наблюдает сбои
// независимо. Кросс-процессная согласованность eventual: это осознанный
// размен глобальной координации на отсутствие блокировки в БД на каждый
// вызов.
package breaker
