package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/resumetailor/internal/model"
)

func makeTestServer(t *testing.T, statusCode int, body any) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func newTestProvider(srv *httptest.Server, client *http.Client) *GeminiProvider {
	return NewGeminiProvider(srv.URL, "test-key", "test-model", DefaultGenerationConfig(), client)
}

func TestGenerate_Success(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, candidateResponse("```latex\nBODY\n```"))

	got, err := newTestProvider(srv, client).Generate(context.Background(), "tailor this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "```latex\nBODY\n```" {
		t.Errorf("got %q, want raw candidate text", got)
	}
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
	})

	_, err := newTestProvider(srv, client).Generate(context.Background(), "p")

	var rf *model.RequestFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("expected RequestFailedError, got %v", err)
	}
	if rf.Message != "quota exceeded" {
		t.Errorf("Message = %q, want %q", rf.Message, "quota exceeded")
	}
	if rf.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", rf.StatusCode)
	}
}

func TestGenerate_HTTPErrorWithoutMessage(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusInternalServerError, map[string]string{"oops": "x"})

	_, err := newTestProvider(srv, client).Generate(context.Background(), "p")

	var rf *model.RequestFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("expected RequestFailedError, got %v", err)
	}
	if rf.Message != genericFailure {
		t.Errorf("Message = %q, want generic failure", rf.Message)
	}
}

func TestGenerate_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv, srv.Client()).Generate(context.Background(), "p")

	var rf *model.RequestFailedError
	if !errors.As(err, &rf) || rf.Message != genericFailure {
		t.Fatalf("expected generic RequestFailedError, got %v", err)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, map[string]any{"candidates": []any{}})

	_, err := newTestProvider(srv, client).Generate(context.Background(), "p")
	if !errors.Is(err, model.ErrEmptyGeneration) {
		t.Fatalf("expected ErrEmptyGeneration, got %v", err)
	}
}

func TestGenerate_CandidateWithoutParts(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, map[string]any{
		"candidates": []any{map[string]any{"finishReason": "SAFETY"}},
	})

	_, err := newTestProvider(srv, client).Generate(context.Background(), "p")
	if !errors.Is(err, model.ErrEmptyGeneration) {
		t.Fatalf("expected ErrEmptyGeneration, got %v", err)
	}
}

func TestGenerate_SendsRequestShape(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotReq  generateRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(candidateResponse("ok"))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL+"/", "my-secret-key", "gemini-2.0-flash-exp", DefaultGenerationConfig(), srv.Client())
	if _, err := p.Generate(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/models/gemini-2.0-flash-exp:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "my-secret-key" {
		t.Errorf("key = %q, want my-secret-key", gotKey)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 || gotReq.Contents[0].Parts[0].Text != "hello" {
		t.Errorf("contents = %+v, want single part with prompt", gotReq.Contents)
	}
	gc := gotReq.GenerationConfig
	if gc.Temperature != 0.7 || gc.TopK != 40 || gc.TopP != 0.95 || gc.MaxOutputTokens != 8192 {
		t.Errorf("generationConfig = %+v", gc)
	}
}

func TestGenerate_ExactlyOneRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _ = newTestProvider(srv, srv.Client()).Generate(context.Background(), "p")
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", n)
	}
}

func TestGenerate_DeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestProvider(srv, srv.Client()).Generate(ctx, "p")

	var rf *model.RequestFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("expected RequestFailedError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected error chain to contain DeadlineExceeded, got %v", err)
	}
	if strings.Contains(rf.Error(), "test-key") {
		t.Errorf("error message leaks the API key: %q", rf.Error())
	}
}
