package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/finplan/internal/agent"
	"github.com/ashureev/finplan/internal/config"
	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/identity"
	"github.com/ashureev/finplan/internal/middleware"
	"github.com/ashureev/finplan/internal/platform"
	"github.com/ashureev/finplan/internal/session"
	"github.com/ashureev/finplan/internal/speech"
	"github.com/ashureev/finplan/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

func (p *stubPlanner) Plan(_ context.Context, goals, situation string, _ []domain.HistoryEntry) (domain.FinancialPlan, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return domain.FinancialPlan{}, p.err
	}
	return domain.FinancialPlan{Markdown: "## Plan\n- " + goals + "\n- " + situation, GeneratedAt: time.Now()}, nil
}

type stubFactory struct{ planner *stubPlanner }

func (f stubFactory) Build(creds domain.Credentials) (*agent.Agents, error) {
	if !creds.Present() {
		return nil, agent.ErrMissingCredentials
	}
	return &agent.Agents{Planner: f.planner}, nil
}

type stubRecognizer struct{ text string }

func (r stubRecognizer) Recognize(context.Context, speech.Clip) (string, error) {
	return r.text, nil
}

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	planner  *stubPlanner
	sessions *session.Store
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	planner := &stubPlanner{}
	sessions := session.NewStore(time.Minute, session.Deps{
		Agents:      stubFactory{planner: planner},
		Recognizers: func(string) speech.Recognizer { return stubRecognizer{text: "Retire by 50"} },
		PlanTimeout: 5 * time.Second,
		SpeechWait:  time.Second,
	})

	limiter := middleware.NewRateLimiter(rateLimit, time.Minute)
	t.Cleanup(limiter.Close)
	limit := middleware.RateLimit(limiter, func(r *http.Request) string {
		return identity.SessionIDFromContext(r.Context())
	})

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	NewHealthHandler(repo, sessions).RegisterHealth(r)
	NewSessionHandler(sessions, SessionHandlerConfig{KeepaliveInterval: 20 * time.Millisecond, IsDevelopment: true}).RegisterRoutes(r, limit)
	NewPlatformHandler(platform.NewService(repo, nil), 0).RegisterRoutes(r, limit)
	r.Get("/ws/session/record/{field}", NewRecordHandler(sessions, config.SpeechConfig{
		WaitTimeout:     500 * time.Millisecond,
		MaxPhrase:       2 * time.Second,
		EnergyThreshold: 300,
		MaxClipBytes:    1 << 20,
	}, "", true).ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, planner: planner, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.name != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	return events
}

func (e *testEnv) setCredentials(t *testing.T, chat, search string) session.View {
	t.Helper()
	resp := e.do(t, http.MethodPut, "/api/session/credentials/chat", `{"value":"`+chat+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(t, http.MethodPut, "/api/session/credentials/search", `{"value":"`+search+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[session.View](t, resp)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, 100)

	resp := env.do(t, http.MethodGet, "/api/session/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, "awaiting_credentials", view["state"])

	resp = env.do(t, http.MethodPost, "/api/session/plan", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "missing_credentials", decode[map[string]string](t, resp)["error"])

	v := env.setCredentials(t, "sk-secret", "serp-secret")
	assert.Equal(t, session.Ready, v.State)
	assert.Equal(t, "********", v.Credentials.Chat)

	resp = env.do(t, http.MethodPut, "/api/session/fields/goals", `{"value":"Save for a house down payment in 5 years"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPut, "/api/session/fields/situation", `{"value":"Age 30, income $80k/year"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/session/plan", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.Len(t, events, 2)
	assert.Equal(t, "processing", events[0].name)
	assert.Equal(t, "plan", events[1].name)

	var plan domain.FinancialPlan
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &plan))
	assert.Contains(t, plan.Markdown, "Save for a house down payment in 5 years")
	assert.Contains(t, plan.HTML, "<h2>Plan</h2>")

	resp = env.do(t, http.MethodGet, "/api/session/", "")
	v = decode[session.View](t, resp)
	assert.Equal(t, 1, v.HistoryLen)
	require.NotNil(t, v.Plan)

	raw := env.do(t, http.MethodGet, "/api/session/", "")
	body, _ := io.ReadAll(raw.Body)
	assert.NotContains(t, string(body), "sk-secret")
	assert.NotContains(t, string(body), "serp-secret")
}

func TestGenerateStreamsProviderError(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")
	env.planner.err = errors.New("401 invalid api key")

	resp := env.do(t, http.MethodPost, "/api/session/plan", "")
	events := readEvents(t, resp)
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].name)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &payload))
	assert.Equal(t, "generation_failed", payload["error"])
	assert.Contains(t, payload["message"], "invalid api key")

	v := decode[session.View](t, env.do(t, http.MethodGet, "/api/session/", ""))
	assert.Equal(t, 0, v.HistoryLen)
	assert.Equal(t, session.Ready, v.State)
}

func TestGenerateSendsKeepalive(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")
	env.planner.gate = make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(env.planner.gate)
	}()

	resp := env.do(t, http.MethodPost, "/api/session/plan", "")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), ": keepalive")
	assert.Contains(t, string(body), "event: plan")
}

func TestGenerateRejectsWhileBusy(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")
	env.planner.gate = make(chan struct{})

	first := make(chan *http.Response, 1)
	go func() {
		first <- env.do(t, http.MethodPost, "/api/session/plan", "")
	}()

	require.Eventually(t, func() bool {
		v := decode[session.View](t, env.do(t, http.MethodGet, "/api/session/", ""))
		return v.State == session.Generating
	}, 2*time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/session/plan", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "generation_in_progress", decode[map[string]string](t, resp)["error"])

	close(env.planner.gate)
	events := readEvents(t, <-first)
	require.NotEmpty(t, events)
	assert.Equal(t, "plan", events[len(events)-1].name)
}

func TestClearingCredentialDisablesGenerate(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")

	resp := env.do(t, http.MethodPut, "/api/session/credentials/search", `{"value":""}`)
	v := decode[session.View](t, resp)
	assert.Equal(t, session.AwaitingCredentials, v.State)

	resp = env.do(t, http.MethodPost, "/api/session/plan", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUnknownCredentialAndField(t *testing.T) {
	env := newTestEnv(t, 100)

	resp := env.do(t, http.MethodPut, "/api/session/credentials/weather", `{"value":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/session/fields/notes", `{"value":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/session/fields/goals", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSessionWipesState(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")

	resp := env.do(t, http.MethodDelete, "/api/session/", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	v := decode[session.View](t, env.do(t, http.MethodGet, "/api/session/", ""))
	assert.Equal(t, session.AwaitingCredentials, v.State)
	assert.Empty(t, v.Credentials.Chat)
}

func TestSessionsAreIsolatedPerBrowser(t *testing.T) {
	env := newTestEnv(t, 100)
	env.setCredentials(t, "sk", "serp")

	other := &http.Client{}
	resp, err := other.Get(env.srv.URL + "/api/session/")
	require.NoError(t, err)
	defer resp.Body.Close()
	v := decode[session.View](t, resp)
	assert.Equal(t, session.AwaitingCredentials, v.State)
	assert.Equal(t, 2, env.sessions.Len())
}

func TestGenerateIsRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	env.setCredentials(t, "sk", "serp")

	resp := env.do(t, http.MethodPost, "/api/session/plan", "")
	readEvents(t, resp)

	resp = env.do(t, http.MethodPost, "/api/session/plan", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 100)
	resp := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
}
