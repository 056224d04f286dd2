package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/resumetailor/internal/ai"
	"github.com/amishk599/resumetailor/internal/model"
)

// newGeminiPipeline wires a Pipeline to the REST provider backed by a test
// server that always answers with status and body.
func newGeminiPipeline(t *testing.T, status int, body any) (*Pipeline, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	provider := ai.NewGeminiProvider(srv.URL, "test-key", "gemini-test", ai.DefaultGenerationConfig(), srv.Client())
	return New(provider, time.Minute, discardLogger()), &requests
}

func TestApply_GeminiQuotaExceeded(t *testing.T) {
	pl, requests := newGeminiPipeline(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"code": 429, "message": "quota exceeded"},
	})

	st := State{Document: "CURRENT", Role: "SRE", JobDescription: "JD"}
	got, err := pl.Apply(context.Background(), st, model.Operation{Kind: model.KindRefine, Instruction: "add Go"})

	var rf *model.RequestFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("err = %v, want *RequestFailedError", err)
	}
	if rf.Message != "quota exceeded" || rf.StatusCode != http.StatusTooManyRequests {
		t.Errorf("RequestFailedError = %+v", rf)
	}
	if got != st {
		t.Errorf("state changed on failure: %+v", got)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestApply_GeminiNoCandidates(t *testing.T) {
	pl, requests := newGeminiPipeline(t, http.StatusOK, map[string]any{"candidates": []any{}})

	st := State{Document: "CURRENT", Role: "SRE"}
	got, err := pl.Apply(context.Background(), st, model.Operation{Kind: model.KindShorten})

	if !errors.Is(err, model.ErrEmptyGeneration) {
		t.Fatalf("err = %v, want ErrEmptyGeneration", err)
	}
	if got != st {
		t.Errorf("state changed on failure: %+v", got)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestApply_GeminiSuccessCleansFence(t *testing.T) {
	pl, _ := newGeminiPipeline(t, http.StatusOK, map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": "```latex\nSHORTER\n```"}}},
		}},
	})

	got, err := pl.Apply(context.Background(), State{Document: "CURRENT"}, model.Operation{Kind: model.KindShorten})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Document != "SHORTER" {
		t.Errorf("Document = %q, want SHORTER", got.Document)
	}
}

func TestApply_GeminiMissingInputSendsNothing(t *testing.T) {
	pl, requests := newGeminiPipeline(t, http.StatusOK, map[string]any{})

	_, err := pl.Apply(context.Background(), State{Document: "BASE"}, model.Operation{Kind: model.KindTailor, Role: "SRE"})
	if field, ok := model.MissingField(err); !ok || field != "jobDescription" {
		t.Fatalf("err = %v, want missing jobDescription", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}
