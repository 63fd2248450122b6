package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/log"
)

// chatHandler exposes the turn pipeline over HTTP.
//
// Endpoints:
//   - POST /api/v1/chat        - Synchronous turn (JSON request/response)
//   - POST /api/v1/chat/stream - Streaming turn (Server-Sent Events)
//
// Both go through the same Genkit flow. Closing the SSE connection
// cancels the request context; the pipeline commits the partial answer
// accumulated up to that point.
type chatHandler struct {
	flow   *chat.Flow
	logger log.Logger
}

// registerRoutes registers chat routes on the mux. With no flow
// configured the routes are omitted and return 404.
func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow not configured, skipping route registration")
		return
	}
	mux.Handle("POST /api/v1/chat", genkit.Handler(h.flow))
	mux.HandleFunc("POST /api/v1/chat/stream", h.stream)
}

// SSE event types for chat streaming.
const (
	eventChunk = "chunk"
	eventDone  = "done"
	eventError = "error"
)

type chunkPayload struct {
	Text string `json:"text"`
}

type donePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// stream handles SSE streaming chat requests.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var input chat.Input
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "INVALID_REQUEST", Message: "invalid request body"})
		return
	}
	if input.SessionID == "" {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "MISSING_SESSION_ID", Message: "sessionId is required"})
		return
	}
	if input.Query == "" {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "MISSING_QUERY", Message: "query is required"})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "session_id", input.SessionID)

	var (
		finalOutput chat.Output
		streamErr   error
	)

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			// Pipeline-side cancellation has already committed the
			// partial answer; nothing left to send.
			h.logger.Info("client disconnected mid-stream", "session_id", input.SessionID)
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}
		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}
		if streamValue.Stream.Text != "" {
			if err := writeEvent(w, flusher, eventChunk, chunkPayload{Text: streamValue.Stream.Text}); err != nil {
				h.logger.Debug("writing chunk", "error", err)
				return
			}
		}
	}

	if streamErr != nil {
		h.writeStreamError(w, flusher, streamErr)
		return
	}

	_ = writeEvent(w, flusher, eventDone, donePayload{
		Response:  finalOutput.Response,
		SessionID: finalOutput.SessionID,
		Cancelled: finalOutput.Cancelled,
	})
	h.logger.Debug("SSE stream completed", "session_id", input.SessionID)
}

// writeStreamError maps pipeline errors to SSE error events.
func (h *chatHandler) writeStreamError(w io.Writer, f http.Flusher, err error) {
	code := "STREAM_ERROR"
	switch {
	case errors.Is(err, chat.ErrInvalidSession):
		code = "INVALID_SESSION"
	case errors.Is(err, chat.ErrExecutionFailed):
		code = "EXECUTION_FAILED"
	}
	_ = writeEvent(w, f, eventError, errorPayload{Code: code, Message: err.Error()})
}

// writeEvent writes a single SSE event: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
