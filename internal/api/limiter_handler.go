package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Bastion/internal/ratelimit"
)

// ListLimiters возвращает состояние всех bucket'ов.
// GET /api/v1/limiters
func (h *Handler) ListLimiters(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.limiter.Status(r.Context())
	if HandleRepoError(w, h.logger, err, "limiters unavailable") {
		return
	}
	List(w, buckets, len(buckets))
}

// CheckLimiter возвращает состояние bucket'а без списания токена.
// GET /api/v1/limiters/{service}/{tenant}
func (h *Handler) CheckLimiter(w http.ResponseWriter, r *http.Request) {
	state, err := h.limiter.Check(r.Context(), r.PathValue("service"), r.PathValue("tenant"))
	if err != nil {
		h.limiterError(w, err)
		return
	}
	Success(w, state)
}

// ResetLimiter восстанавливает bucket к сконфигурированным параметрам
// и снимает аварийную остановку.
// POST /api/v1/limiters/{service}/{tenant}/reset
func (h *Handler) ResetLimiter(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.Reset(r.Context(), r.PathValue("service"), r.PathValue("tenant")); err != nil {
		h.limiterError(w, err)
		return
	}
	NoContent(w)
}

// EmergencyStopLimiter замораживает bucket: токены обнуляются, refill
// останавливается до явного reset. Требует подтверждения в теле.
// POST /api/v1/limiters/{service}/{tenant}/stop
func (h *Handler) EmergencyStopLimiter(w http.ResponseWriter, r *http.Request) {
	var req EmergencyStopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if !req.Confirm {
		BadRequest(w, "confirm must be true")
		return
	}

	if err := h.limiter.EmergencyStop(r.Context(), r.PathValue("service"), r.PathValue("tenant")); err != nil {
		h.limiterError(w, err)
		return
	}
	NoContent(w)
}

func (h *Handler) limiterError(w http.ResponseWriter, err error) {
	if errors.Is(err, ratelimit.ErrUnknownService) {
		NotFound(w, err.Error())
		return
	}
	HandleRepoError(w, h.logger, err, "limiter not found")
}
