package api

import (
	"net/http"

	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
)

// profilesHandler lists the selectable profiles.
type profilesHandler struct {
	router *knowledge.Router
	logger log.Logger
}

// list handles GET /api/v1/profiles.
func (h *profilesHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"profiles": h.router.Profiles()}, h.logger)
}
