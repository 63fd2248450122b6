package api

import (
	"encoding/json"
	"net/http"

	"github.com/kanoonai/kanoon/internal/auth"
	"github.com/kanoonai/kanoon/internal/log"
)

// loginHandler verifies account credentials.
type loginHandler struct {
	auth   *auth.Service
	logger log.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// login handles POST /api/v1/login. Unknown email and wrong password
// return the same generic 401.
func (h *loginHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required", h.logger)
		return
	}

	acct, err := h.auth.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("verifying credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "auth_failed", "could not verify credentials", h.logger)
		return
	}
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{ID: acct.ID.String(), Email: acct.Email}, h.logger)
}
