package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/resumetailor/internal/compile"
	"github.com/amishk599/resumetailor/internal/handoff"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/pipeline"
	"github.com/amishk599/resumetailor/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner appends a marker per operation so results are easy to assert.
type fakeRunner struct {
	mu    sync.Mutex
	ops   []model.Operation
	err   error
	delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeRunner) Run(_ context.Context, op model.Operation) (string, error) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return op.Document + "|" + string(op.Kind), nil
}

func (f *fakeRunner) Apply(ctx context.Context, st pipeline.State, op model.Operation) (pipeline.State, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxInFlight.Load()
		if n <= old || f.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(f.delay)

	if op.Document == "" {
		op.Document = st.Document
	}
	if op.Kind == model.KindRefine && op.Instruction == "" {
		return st, &model.MissingInputError{Field: "instruction"}
	}
	doc, err := f.Run(ctx, op)
	if err != nil {
		return st, err
	}
	next := pipeline.State{Document: doc, Role: st.Role, JobDescription: st.JobDescription}
	if op.Kind == model.KindTailor {
		next.Role, next.JobDescription = op.Role, op.JobDescription
	}
	return next, nil
}

type fakeCompiler struct {
	pdf []byte
	err error
}

func (f *fakeCompiler) Compile(context.Context, string) ([]byte, error) {
	return f.pdf, f.err
}

type testEnv struct {
	runner   *fakeRunner
	store    *store.MemoryStore
	compiler *fakeCompiler
	router   *gin.Engine
	server   *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		runner:   &fakeRunner{},
		store:    store.NewMemoryStore(),
		compiler: &fakeCompiler{pdf: []byte("%PDF-1.4")},
	}
	srv := New(Deps{
		Runner:      env.runner,
		Store:       env.store,
		Compiler:    env.compiler,
		Editor:      handoff.New("https://www.overleaf.com/docs", "pdflatex"),
		Template:    "TEMPLATE",
		CORSOrigins: []string{"chrome-extension://abc"},
	}, discardLogger())
	env.server = srv
	env.router = srv.Router()
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T, body string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Session sessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Session.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error.Code
}

func TestHealthAndTemplate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])

	w = env.do(http.MethodGet, "/api/v1/template", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TEMPLATE", decode(t, w)["document"])
}

func TestRunOperation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/operations", `{"kind":"shorten","document":"DOC"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "DOC|shorten", decode(t, w)["document"])
	require.Len(t, env.runner.ops, 1)
	assert.Equal(t, model.KindShorten, env.runner.ops[0].Kind)
}

func TestRunOperationUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/operations", `{"kind":"rewrite","document":"DOC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCode(t, w))
	assert.Empty(t, env.runner.ops)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing input", &model.MissingInputError{Field: "role"}, http.StatusBadRequest, "missing_input"},
		{"request failed", &model.RequestFailedError{StatusCode: 429, Message: "quota exceeded"}, http.StatusBadGateway, "request_failed"},
		{"empty generation", model.ErrEmptyGeneration, http.StatusBadGateway, "empty_generation"},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.runner.err = tt.err

			w := env.do(http.MethodPost, "/api/v1/operations", `{"kind":"shorten","document":"DOC"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestRequestFailedCarriesServerMessage(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = &model.RequestFailedError{StatusCode: 429, Message: "quota exceeded"}

	w := env.do(http.MethodPost, "/api/v1/operations", `{"kind":"shorten","document":"DOC"}`)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "quota exceeded", resp.Error.Message)
}

func TestCreateSessionDefaultsToTemplate(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"name":"acme"}`)

	cur, err := env.store.CurrentRevision(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "TEMPLATE", cur.Content)
	assert.Equal(t, model.KindBase, cur.Kind)
}

func TestSessionOperationsAppendRevisions(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"name":"acme","document":"BASE"}`)
	base := "/api/v1/sessions/" + id

	w := env.do(http.MethodPost, base+"/tailor", `{"role":"SRE","jobDescription":"Run Kubernetes"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPost, base+"/refine", `{"instruction":"add Go"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPost, base+"/shorten", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx := context.Background()
	revs, err := env.store.Revisions(ctx, id)
	require.NoError(t, err)
	require.Len(t, revs, 4)
	assert.Equal(t, "BASE|tailor|refine|shorten", revs[3].Content)
	assert.Equal(t, "add Go", revs[2].Instruction)

	sess, err := env.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SRE", sess.Role)
	assert.Equal(t, "Run Kubernetes", sess.JobDescription)

	// Shorten reuses the role from the tailored session.
	require.Len(t, env.runner.ops, 3)
	assert.Equal(t, model.KindShorten, env.runner.ops[2].Kind)

	// A second tailor starts from the base document, not the edited one.
	w = env.do(http.MethodPost, base+"/tailor", `{"role":"Platform","jobDescription":"Run Terraform"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, env.runner.ops, 4)
	assert.Equal(t, "BASE", env.runner.ops[3].Document)

	cur, err := env.store.CurrentRevision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BASE|tailor", cur.Content)
	assert.Equal(t, 4, cur.Seq)
}

func TestSessionOperationFailureKeepsHistory(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"document":"BASE"}`)

	w := env.do(http.MethodPost, "/api/v1/sessions/"+id+"/refine", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_input", errorCode(t, w))

	revs, err := env.store.Revisions(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, revs, 1)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/sessions/nope", "/api/v1/sessions/nope/pdf", "/api/v1/sessions/nope/overleaf"} {
		w := env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := env.do(http.MethodPost, "/api/v1/sessions/nope/shorten", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevert(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"document":"BASE"}`)
	base := "/api/v1/sessions/" + id

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, base+"/shorten", "").Code)

	w := env.do(http.MethodPost, base+"/revert", `{"seq":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cur, err := env.store.CurrentRevision(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Seq)
	assert.Equal(t, "BASE", cur.Content)
	assert.Equal(t, model.KindRevert, cur.Kind)

	w = env.do(http.MethodPost, base+"/revert", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, base+"/revert", `{"seq":9}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndGetSessions(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"name":"acme"}`)
	env.createSession(t, `{"name":"globex"}`)

	w := env.do(http.MethodGet, "/api/v1/sessions?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	sessions := decode(t, w)["sessions"].([]any)
	assert.Len(t, sessions, 1)

	w = env.do(http.MethodGet, "/api/v1/sessions?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["revisions"].([]any), 1)
}

func TestPDF(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"document":"BASE"}`)

	w := env.do(http.MethodGet, "/api/v1/sessions/"+id+"/pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/sessions/"+id+"/pdf?seq=3", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/sessions/"+id+"/pdf?seq=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPDFCompileError(t *testing.T) {
	env := newTestEnv(t)
	env.compiler.err = &compile.CompileError{StatusCode: 400, Log: "! Undefined control sequence."}
	id := env.createSession(t, `{"document":"BASE"}`)

	w := env.do(http.MethodGet, "/api/v1/sessions/"+id+"/pdf", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Undefined control sequence")
}

func TestOverleafPage(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, `{"document":"\\section{A}"}`)

	w := env.do(http.MethodGet, "/api/v1/sessions/"+id+"/overleaf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `action="https://www.overleaf.com/docs"`)
	assert.Contains(t, w.Body.String(), "%5Csection%7BA%7D")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/operations", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "chrome-extension://abc", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionOperationsAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	env.runner.delay = 20 * time.Millisecond
	id := env.createSession(t, `{"document":"BASE"}`)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.do(http.MethodPost, "/api/v1/sessions/"+id+"/shorten", "")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), env.runner.maxInFlight.Load())
	revs, err := env.store.Revisions(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, revs, 5)
	assert.Equal(t, "BASE|shorten|shorten|shorten|shorten", revs[4].Content)
}

func TestSessionLocksAreReleased(t *testing.T) {
	env := newTestEnv(t)
	env.runner.delay = 5 * time.Millisecond
	id := env.createSession(t, `{"document":"BASE"}`)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := id
			if i%2 == 1 {
				target = "missing-" + strconv.Itoa(i)
			}
			env.do(http.MethodPost, "/api/v1/sessions/"+target+"/shorten", "")
		}()
	}
	wg.Wait()

	w := env.do(http.MethodPost, "/api/v1/sessions/"+id+"/revert", `{"seq":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.server.mu.Lock()
	defer env.server.mu.Unlock()
	assert.Empty(t, env.server.locks)
}
