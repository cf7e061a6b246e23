package handlers

import (
	"net/http"

	"github.com/DanielPopoola/edge-collector/internal/interfaces/rest"
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}
