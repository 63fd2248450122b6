package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoonai/kanoon/internal/audio"
	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

type scriptedTranscriber struct {
	mu     sync.Mutex
	result string
	err    error
	calls  int
}

func (s *scriptedTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func newAudioFixture(t *testing.T, tr audio.Transcriber) (*serverFixture, *Server) {
	t.Helper()
	f := newServerFixture(t)

	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Lifecycle:    f.sessions,
		Store:        session.NewStore(nil, log.NewNop()),
		Router:       knowledge.NewRouter(),
		ChatFlow:     nil,
		ChatPipeline: f.pipeline,
		Audio:        audio.NewPipeline(tr, log.NewNop()),
	})
	require.NoError(t, err)
	return f, srv
}

func postAudio(srv *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestVoiceTurnRoundTrip(t *testing.T) {
	tr := &scriptedTranscriber{result: "jagga bibad ke ho"}
	f, srv := newAudioFixture(t, tr)
	f.mock.AddResponse("jagga", "voice answer")

	conv := f.sessions.Start(uuid.New())
	base := "/api/v1/sessions/" + conv.ID().String() + "/audio/"

	rec := postAudio(srv, base+"begin", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	pcm := base64.StdEncoding.EncodeToString([]byte{0x01, 0x00, 0x02, 0x00})
	rec = postAudio(srv, base+"chunk", `{"audio":"`+pcm+`"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = postAudio(srv, base+"end", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transcript string `json:"transcript"`
		Response   string `json:"response"`
		Notice     string `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jagga bibad ke ho", resp.Transcript)
	assert.Equal(t, "voice answer", resp.Response)
	assert.Empty(t, resp.Notice)

	// The transcript became a normal turn.
	turns := conv.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "jagga bibad ke ho", turns[0].Content)
}

func TestVoiceTurnTranscriptionFailureIsInBand(t *testing.T) {
	tr := &scriptedTranscriber{err: errors.New("model unavailable")}
	f, srv := newAudioFixture(t, tr)

	conv := f.sessions.Start(uuid.New())
	base := "/api/v1/sessions/" + conv.ID().String() + "/audio/"

	postAudio(srv, base+"begin", "")
	pcm := base64.StdEncoding.EncodeToString([]byte{0x01, 0x00})
	postAudio(srv, base+"chunk", `{"audio":"`+pcm+`"}`)

	rec := postAudio(srv, base+"end", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notice")
	assert.Empty(t, conv.Turns())
}

func TestVoiceTurnEmptyCapture(t *testing.T) {
	tr := &scriptedTranscriber{result: "unused"}
	f, srv := newAudioFixture(t, tr)

	conv := f.sessions.Start(uuid.New())
	base := "/api/v1/sessions/" + conv.ID().String() + "/audio/"

	postAudio(srv, base+"begin", "")
	rec := postAudio(srv, base+"end", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, tr.calls)
	assert.Empty(t, conv.Turns())
}

func TestVoiceChunkBadBase64(t *testing.T) {
	tr := &scriptedTranscriber{}
	_, srv := newAudioFixture(t, tr)

	base := "/api/v1/sessions/" + uuid.NewString() + "/audio/"
	rec := postAudio(srv, base+"chunk", `{"audio":"%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
