package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
	"github.com/kanoonai/kanoon/internal/testutil"
)

// serverFixture wires a full server around the mock model and an
// in-memory searcher. No database is involved; handlers that need one
// are exercised in the integration tests.
type serverFixture struct {
	server   *Server
	mock     *testutil.MockLLM
	searcher *testutil.StubSearcher
	sessions *session.Lifecycle
	pipeline *chat.Pipeline
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM("mock answer")
	mock.Register(g)

	searcher := testutil.NewStubSearcher()
	lifecycle := session.NewLifecycle(nil, log.NewNop())
	router := knowledge.NewRouter()

	pipeline, err := chat.New(chat.Config{
		Genkit:    g,
		Assembler: chat.NewAssembler(searcher, 3, log.NewNop()),
		Router:    router,
		Sessions:  lifecycle,
		Logger:    log.NewNop(),
		ModelName: testutil.MockModelName,
	})
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Lifecycle:    lifecycle,
		Store:        session.NewStore(nil, log.NewNop()),
		Router:       router,
		ChatFlow:     pipeline.DefineFlow(g),
		ChatPipeline: pipeline,
	})
	require.NoError(t, err)

	return &serverFixture{
		server:   srv,
		mock:     mock,
		searcher: searcher,
		sessions: lifecycle,
		pipeline: pipeline,
	}
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session lifecycle is required")

	_, err = NewServer(ServerConfig{Lifecycle: session.NewLifecycle(nil, log.NewNop())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session store is required")
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfilesEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Profiles []knowledge.Profile `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Profiles, 6)

	names := make([]string, 0, len(body.Profiles))
	for _, p := range body.Profiles {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "General")
	assert.Contains(t, names, "Lawyer")
}

func TestUnknownRouteIs404(t *testing.T) {
	f := newServerFixture(t)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
