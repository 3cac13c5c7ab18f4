package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Dead letter queue
	mux.Handle("GET /api/v1/dlq", chain(http.HandlerFunc(h.ListDeadLetters)))
	mux.Handle("GET /api/v1/dlq/stats", chain(http.HandlerFunc(h.DeadLetterStats)))
	mux.Handle("POST /api/v1/dlq/{id}/retry", chain(http.HandlerFunc(h.RetryDeadLetter)))
	mux.Handle("POST /api/v1/dlq/retry", chain(http.HandlerFunc(h.BulkRetryDeadLetters)))
	mux.Handle("POST /api/v1/dlq/delete", chain(http.HandlerFunc(h.BulkDeleteDeadLetters)))

	// Rate limiters
	mux.Handle("GET /api/v1/limiters", chain(http.HandlerFunc(h.ListLimiters)))
	mux.Handle("GET /api/v1/limiters/{service}/{tenant}", chain(http.HandlerFunc(h.CheckLimiter)))
	mux.Handle("POST /api/v1/limiters/{service}/{tenant}/reset", chain(http.HandlerFunc(h.ResetLimiter)))
	mux.Handle("POST /api/v1/limiters/{service}/{tenant}/stop", chain(http.HandlerFunc(h.EmergencyStopLimiter)))

	// Circuit breakers
	mux.Handle("GET /api/v1/breakers", chain(http.HandlerFunc(h.ListBreakers)))
	mux.Handle("POST /api/v1/breakers/{name}/reset", chain(http.HandlerFunc(h.ResetBreaker)))
}
