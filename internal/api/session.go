package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

// sessionHandler exposes session management: creation, listing,
// resume, and deletion. Live conversation state is held by the
// lifecycle registry; the store persists threads across restarts.
type sessionHandler struct {
	lifecycle *session.Lifecycle
	store     *session.Store
	logger    log.Logger
}

type createSessionRequest struct {
	Title   string `json:"title"`
	Profile string `json:"profile,omitempty"`
}

type sessionResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Profile   string         `json:"profile,omitempty"`
	StepCount int            `json:"stepCount"`
	Turns     []session.Turn `json:"turns,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// create handles POST /api/v1/sessions.
func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	thread, err := h.store.CreateThread(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("creating thread", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create session", h.logger)
		return
	}

	conv := h.lifecycle.Start(thread.ID)
	conv.SetProfile(req.Profile)

	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        thread.ID.String(),
		Title:     thread.Title,
		Profile:   conv.Profile(),
		CreatedAt: thread.CreatedAt,
		UpdatedAt: thread.UpdatedAt,
	}, h.logger)
}

// list handles GET /api/v1/sessions.
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt32(r, "limit", 50)
	offset := queryInt32(r, "offset", 0)

	threads, err := h.store.ListThreads(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing threads", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list sessions", h.logger)
		return
	}

	out := make([]sessionResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, sessionResponse{
			ID:        t.ID.String(),
			Title:     t.Title,
			StepCount: t.StepCount,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out}, h.logger)
}

// get handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	thread, err := h.store.Thread(r.Context(), id)
	if errors.Is(err, session.ErrThreadNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("getting thread", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "could not load session", h.logger)
		return
	}

	resp := sessionResponse{
		ID:        thread.ID.String(),
		Title:     thread.Title,
		StepCount: thread.StepCount,
		CreatedAt: thread.CreatedAt,
		UpdatedAt: thread.UpdatedAt,
	}
	if conv, live := h.lifecycle.Get(id); live {
		resp.Profile = conv.Profile()
		resp.Turns = conv.Turns()
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// resume handles POST /api/v1/sessions/{id}/resume. The conversation
// is rebuilt from persisted steps; a missing or unreadable history
// yields an empty conversation, never a failure.
func (h *sessionHandler) resume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	conv := h.lifecycle.Resume(r.Context(), id)
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:      id.String(),
		Profile: conv.Profile(),
		Turns:   conv.Turns(),
	}, h.logger)
}

// delete handles DELETE /api/v1/sessions/{id}.
func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteThread(r.Context(), id); err != nil {
		h.logger.Error("deleting thread", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete session", h.logger)
		return
	}
	h.lifecycle.End(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt32(r *http.Request, key string, def int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}
