// Package cli реализует операторский инструмент командной строки Bastion.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Bastion API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для разбора DLQ, управления rate limiters
// и circuit breakers.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Bastion API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	entries, err := client.ListDeadLetters("jobs.payments", 100)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: bastion dlq list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - dlq: list, stats, retry, delete
//   - limiter: list, check, reset, stop
//   - breaker: list, reset
//
// Каждая группа создаётся через фабричную функцию (NewDLQCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
//
// Деструктивные операции (dlq delete, limiter stop) требуют явного
// подтверждения флагом --yes.
package cli
