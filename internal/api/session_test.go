package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoonai/kanoon/internal/session"
)

func TestSessionResponseFromThread(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	thread := &session.Thread{
		ID:        uuid.New(),
		Title:     "जग्गा विवाद",
		StepCount: 7,
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := sessionResponse{
		ID:        thread.ID.String(),
		Title:     thread.Title,
		StepCount: thread.StepCount,
		CreatedAt: thread.CreatedAt,
		UpdatedAt: thread.UpdatedAt,
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(7), decoded["stepCount"])
	assert.Equal(t, thread.Title, decoded["title"])
}

func TestSessionResumeEndpoint(t *testing.T) {
	f := newServerFixture(t)
	id := uuid.New()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id.String()+"/resume", nil)
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id.String(), body.ID)
	assert.Empty(t, body.Turns)

	// The conversation is now live in the registry.
	_, live := f.sessions.Get(id)
	assert.True(t, live)
}

func TestSessionEndpointRejectsBadID(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/not-a-uuid/resume", nil)
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryInt32(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?limit=10&offset=-2&bogus=x", nil)

	assert.Equal(t, int32(10), queryInt32(req, "limit", 50))
	assert.Equal(t, int32(0), queryInt32(req, "offset", 0))
	assert.Equal(t, int32(50), queryInt32(req, "missing", 50))
	assert.Equal(t, int32(50), queryInt32(req, "bogus", 50))
}
