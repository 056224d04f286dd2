package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "from-env")
	path := writeConfig(t, `
ai:
  backend: genai
  model: gemini-1.5-pro
  api_key: ${TEST_GEMINI_KEY}
  timeout: 45s
  generation:
    temperature: 0
    top_k: 10
resume:
  template: ./resume.tex
  role: " Platform Engineer "
compile:
  timeout: 2m
  cache_size: 0
store:
  path: /tmp/rt.db
  retention: 48h
server:
  addr: ":9000"
  cors_origins:
    - chrome-extension://abc
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Backend != BackendGenAI || cfg.AI.Model != "gemini-1.5-pro" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want expanded env var", cfg.AI.APIKey)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Errorf("AI.Timeout = %v, want 45s", cfg.AI.Timeout)
	}
	if cfg.AI.Generation.Temperature != 0 {
		t.Errorf("Temperature = %v, want explicit 0", cfg.AI.Generation.Temperature)
	}
	if cfg.AI.Generation.TopK != 10 || cfg.AI.Generation.TopP != 0.95 || cfg.AI.Generation.MaxOutputTokens != 8192 {
		t.Errorf("Generation = %+v", cfg.AI.Generation)
	}
	if cfg.Resume.Template != "./resume.tex" || cfg.Resume.Role != "Platform Engineer" {
		t.Errorf("Resume = %+v", cfg.Resume)
	}
	if cfg.Compile.Timeout != 2*time.Minute || cfg.Compile.CacheSize != 0 {
		t.Errorf("Compile = %+v", cfg.Compile)
	}
	if cfg.Compile.URL != defaultCompileURL || cfg.Compile.Compiler != "pdflatex" {
		t.Errorf("Compile defaults not kept: %+v", cfg.Compile)
	}
	if cfg.Store.Path != "/tmp/rt.db" || cfg.Store.Retention != 48*time.Hour {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Server.Addr != ":9000" || len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	if cfg.AI != want.AI {
		t.Errorf("AI = %+v, want %+v", cfg.AI, want.AI)
	}
	if cfg.AI.BaseURL != defaultGeminiBaseURL || cfg.AI.Model != defaultModel {
		t.Errorf("AI endpoint = %q %q", cfg.AI.BaseURL, cfg.AI.Model)
	}
	if cfg.Handoff.URL != defaultHandoffURL || cfg.Handoff.Engine != "pdflatex" {
		t.Errorf("Handoff = %+v", cfg.Handoff)
	}
	if cfg.Server.Addr != "127.0.0.1:8787" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_APIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "env-key")
	cfg, err := Load(writeConfig(t, "ai:\n  api_key: ${GEMINI_API_KEY_UNSET_FOR_TEST}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.AI.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "ai: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "ai:\n  backend: openai\n"},
		{"bad timeout", "ai:\n  timeout: soon\n"},
		{"zero timeout", "ai:\n  timeout: 0s\n"},
		{"temperature too high", "ai:\n  generation:\n    temperature: 3\n"},
		{"top_p zero", "ai:\n  generation:\n    top_p: 0\n"},
		{"top_k zero", "ai:\n  generation:\n    top_k: 0\n"},
		{"max tokens zero", "ai:\n  generation:\n    max_output_tokens: 0\n"},
		{"negative cache", "compile:\n  cache_size: -1\n"},
		{"bad retention", "store:\n  retention: forever\n"},
		{"negative retention", "store:\n  retention: -1h\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatalf("Load: expected validation error for %q", tt.content)
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	if err := (AIConfig{}).RequireAPIKey(); err == nil {
		t.Error("expected error for empty api key")
	}
	if err := (AIConfig{APIKey: "k"}).RequireAPIKey(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
