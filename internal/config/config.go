package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for resumetailor.
type Config struct {
	AI      AIConfig
	Resume  ResumeConfig
	Compile CompileConfig
	Handoff HandoffConfig
	Store   StoreConfig
	Server  ServerConfig
}

// AIConfig selects and configures the text-generation backend.
type AIConfig struct {
	Backend    string        // "rest" or "genai"
	BaseURL    string        // REST backend only
	Model      string        // Gemini model identifier, e.g. "gemini-2.0-flash-exp"
	APIKey     string        // expanded from env var by Load
	Timeout    time.Duration // per-operation deadline
	Generation GenerationConfig
}

// GenerationConfig holds the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// ResumeConfig controls the starting document.
type ResumeConfig struct {
	Template string // path to a LaTeX file; empty uses the embedded default
	Role     string // default target role
}

// CompileConfig controls the remote LaTeX compile service.
type CompileConfig struct {
	URL       string
	Compiler  string
	Timeout   time.Duration
	CacheSize int
}

// HandoffConfig controls opening a document in an online editor.
type HandoffConfig struct {
	URL    string
	Engine string
}

// StoreConfig controls session persistence.
type StoreConfig struct {
	Path      string
	Retention time.Duration // sessions untouched for longer are removed
}

// ServerConfig controls the local HTTP service.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

const (
	BackendREST  = "rest"
	BackendGenAI = "genai"

	// APIKeyEnv is consulted when ai.api_key is empty.
	APIKeyEnv = "GEMINI_API_KEY"

	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel         = "gemini-2.0-flash-exp"
	defaultCompileURL    = "https://latex.ytotech.com/builds/sync"
	defaultHandoffURL    = "https://www.overleaf.com/docs"
	defaultEngine        = "pdflatex"
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Backend: BackendREST,
			BaseURL: defaultGeminiBaseURL,
			Model:   defaultModel,
			APIKey:  os.Getenv(APIKeyEnv),
			Timeout: 90 * time.Second,
			Generation: GenerationConfig{
				Temperature:     0.7,
				TopK:            40,
				TopP:            0.95,
				MaxOutputTokens: 8192,
			},
		},
		Compile: CompileConfig{
			URL:       defaultCompileURL,
			Compiler:  defaultEngine,
			Timeout:   60 * time.Second,
			CacheSize: 32,
		},
		Handoff: HandoffConfig{
			URL:    defaultHandoffURL,
			Engine: defaultEngine,
		},
		Store: StoreConfig{
			Path:      "resumetailor.db",
			Retention: 30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	AI      rawAIConfig      `yaml:"ai"`
	Resume  ResumeConfig     `yaml:"resume"`
	Compile rawCompileConfig `yaml:"compile"`
	Handoff rawHandoffConfig `yaml:"handoff"`
	Store   rawStoreConfig   `yaml:"store"`
	Server  rawServerConfig  `yaml:"server"`
}

type rawAIConfig struct {
	Backend    string              `yaml:"backend"`
	BaseURL    string              `yaml:"base_url"`
	Model      string              `yaml:"model"`
	APIKey     string              `yaml:"api_key"`
	Timeout    string              `yaml:"timeout"`
	Generation rawGenerationConfig `yaml:"generation"`
}

// Pointers distinguish "unset" from an explicit zero.
type rawGenerationConfig struct {
	Temperature     *float64 `yaml:"temperature"`
	TopK            *int     `yaml:"top_k"`
	TopP            *float64 `yaml:"top_p"`
	MaxOutputTokens *int     `yaml:"max_output_tokens"`
}

type rawCompileConfig struct {
	URL       string `yaml:"url"`
	Compiler  string `yaml:"compiler"`
	Timeout   string `yaml:"timeout"`
	CacheSize *int   `yaml:"cache_size"`
}

type rawHandoffConfig struct {
	URL    string `yaml:"url"`
	Engine string `yaml:"engine"`
}

type rawStoreConfig struct {
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

type rawServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()

	if err := applyAI(&cfg.AI, raw.AI); err != nil {
		return nil, err
	}

	cfg.Resume = ResumeConfig{
		Template: strings.TrimSpace(raw.Resume.Template),
		Role:     strings.TrimSpace(raw.Resume.Role),
	}

	setString(&cfg.Compile.URL, raw.Compile.URL)
	setString(&cfg.Compile.Compiler, raw.Compile.Compiler)
	if err := setDuration(&cfg.Compile.Timeout, "compile.timeout", raw.Compile.Timeout); err != nil {
		return nil, err
	}
	if raw.Compile.CacheSize != nil {
		cfg.Compile.CacheSize = *raw.Compile.CacheSize
	}

	setString(&cfg.Handoff.URL, raw.Handoff.URL)
	setString(&cfg.Handoff.Engine, raw.Handoff.Engine)

	setString(&cfg.Store.Path, raw.Store.Path)
	if err := setDuration(&cfg.Store.Retention, "store.retention", raw.Store.Retention); err != nil {
		return nil, err
	}

	setString(&cfg.Server.Addr, raw.Server.Addr)
	cfg.Server.CORSOrigins = raw.Server.CORSOrigins

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyAI(dst *AIConfig, raw rawAIConfig) error {
	setString(&dst.Backend, strings.ToLower(raw.Backend))
	setString(&dst.BaseURL, raw.BaseURL)
	setString(&dst.Model, raw.Model)
	// An api_key of "${GEMINI_API_KEY}" with the variable unset expands to
	// "", which keeps the env-derived default.
	setString(&dst.APIKey, raw.APIKey)
	if err := setDuration(&dst.Timeout, "ai.timeout", raw.Timeout); err != nil {
		return err
	}

	g := raw.Generation
	if g.Temperature != nil {
		dst.Generation.Temperature = *g.Temperature
	}
	if g.TopK != nil {
		dst.Generation.TopK = *g.TopK
	}
	if g.TopP != nil {
		dst.Generation.TopP = *g.TopP
	}
	if g.MaxOutputTokens != nil {
		dst.Generation.MaxOutputTokens = *g.MaxOutputTokens
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func validate(cfg *Config) error {
	switch cfg.AI.Backend {
	case BackendREST, BackendGenAI:
	default:
		return fmt.Errorf("ai.backend must be %q or %q, got %q", BackendREST, BackendGenAI, cfg.AI.Backend)
	}
	if cfg.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if cfg.AI.Backend == BackendREST && cfg.AI.BaseURL == "" {
		return fmt.Errorf("ai.base_url is required for the rest backend")
	}
	if cfg.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive, got %v", cfg.AI.Timeout)
	}

	g := cfg.AI.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("ai.generation.temperature must be between 0 and 2, got %v", g.Temperature)
	}
	if g.TopP <= 0 || g.TopP > 1 {
		return fmt.Errorf("ai.generation.top_p must be in (0, 1], got %v", g.TopP)
	}
	if g.TopK < 1 {
		return fmt.Errorf("ai.generation.top_k must be at least 1, got %d", g.TopK)
	}
	if g.MaxOutputTokens < 1 {
		return fmt.Errorf("ai.generation.max_output_tokens must be at least 1, got %d", g.MaxOutputTokens)
	}

	if cfg.Compile.Timeout <= 0 {
		return fmt.Errorf("compile.timeout must be positive, got %v", cfg.Compile.Timeout)
	}
	if cfg.Compile.CacheSize < 0 {
		return fmt.Errorf("compile.cache_size must not be negative, got %d", cfg.Compile.CacheSize)
	}
	if cfg.Store.Retention <= 0 {
		return fmt.Errorf("store.retention must be positive, got %v", cfg.Store.Retention)
	}

	return nil
}

// RequireAPIKey reports an error when no credential is configured. It is
// checked only by commands that build a provider.
func (c AIConfig) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("ai.api_key is required (set it in the config file or via %s)", APIKeyEnv)
	}
	return nil
}
