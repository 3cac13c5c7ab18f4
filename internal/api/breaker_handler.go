package api

import (
	"net/http"
)

// ListBreakers возвращает snapshot всех breakers процесса.
// GET /api/v1/breakers
//
// Состояние breaker процесс-локальное: endpoint показывает breakers
// того процесса, к которому пришёл запрос.
func (h *Handler) ListBreakers(w http.ResponseWriter, _ *http.Request) {
	snapshots := h.breakers.Snapshots()
	List(w, snapshots, len(snapshots))
}

// ResetBreaker принудительно закрывает breaker.
// POST /api/v1/breakers/{name}/reset
func (h *Handler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.breakers.Reset(name) {
		NotFound(w, "breaker not found")
		return
	}
	NoContent(w)
}
