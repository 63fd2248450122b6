package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/kanoonai/kanoon/internal/audio"
	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

// audioNotice is returned in-band when a voice turn cannot be
// completed. Voice capture failures never surface as HTTP errors; the
// client shows the notice and the session stays usable.
const audioNotice = "Could not process the recording. Please try again."

// audioHandler manages voice turns: capture control plus the
// transcribe-then-answer hop when a capture ends.
type audioHandler struct {
	pipeline  *audio.Pipeline
	chat      *chat.Pipeline
	lifecycle *session.Lifecycle
	logger    log.Logger
}

type audioChunkRequest struct {
	// Audio is base64-encoded raw PCM16LE mono 24 kHz.
	Audio string `json:"audio"`
}

type audioEndResponse struct {
	Transcript string `json:"transcript"`
	Response   string `json:"response,omitempty"`
	Notice     string `json:"notice,omitempty"`
}

// begin handles POST /api/v1/sessions/{id}/audio/begin.
func (h *audioHandler) begin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.pipeline.BeginCapture(id)
	w.WriteHeader(http.StatusNoContent)
}

// chunk handles POST /api/v1/sessions/{id}/audio/chunk.
func (h *audioHandler) chunk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req audioChunkRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_audio", "audio must be base64-encoded PCM", h.logger)
		return
	}

	h.pipeline.IngestChunk(id, pcm)
	w.WriteHeader(http.StatusNoContent)
}

// end handles POST /api/v1/sessions/{id}/audio/end. The capture is
// transcribed and the transcript runs a full turn; the final answer is
// returned synchronously.
func (h *audioHandler) end(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	transcript, err := h.pipeline.EndCapture(r.Context(), id)
	if err != nil {
		h.logger.Warn("transcribing capture", "session_id", id, "error", err)
		writeJSON(w, http.StatusOK, audioEndResponse{Notice: audioNotice}, h.logger)
		return
	}
	if transcript == "" {
		writeJSON(w, http.StatusOK, audioEndResponse{}, h.logger)
		return
	}

	conv, live := h.lifecycle.Get(id)
	if !live {
		conv = h.lifecycle.Resume(r.Context(), id)
	}

	res, err := h.chat.Run(r.Context(), conv, transcript, nil, nil)
	if err != nil {
		h.logger.Warn("voice turn failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusOK, audioEndResponse{Transcript: transcript, Notice: audioNotice}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, audioEndResponse{Transcript: transcript, Response: res.Text}, h.logger)
}

func (h *audioHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}
