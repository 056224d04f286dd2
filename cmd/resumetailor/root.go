package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/ai"
	"github.com/amishk599/resumetailor/internal/compile"
	"github.com/amishk599/resumetailor/internal/config"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/pipeline"
	"github.com/amishk599/resumetailor/internal/resume"
	"github.com/amishk599/resumetailor/internal/store"
	"github.com/amishk599/resumetailor/internal/studio"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath   string
	debug     bool
	ephemeral bool
)

var rootCmd = &cobra.Command{
	Use:   "resumetailor",
	Short: "Tailor a LaTeX resume to a job with Gemini",
	Long: "resumetailor rewrites a LaTeX resume for a target role and job description, " +
		"refines it from plain-language instructions, and trims it to fit one page.",
	SilenceUsage: true,
	// With no subcommand, open the interactive studio.
	RunE: runStudio,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: RESUMETAILOR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep sessions in memory only; nothing is written to disk")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > RESUMETAILOR_CONFIG env var > "./config.yaml".
// A missing ./config.yaml falls back to defaults; an explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	// .env is optional; it only seeds variables such as GEMINI_API_KEY.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		if env := os.Getenv("RESUMETAILOR_CONFIG"); env != "" {
			path = env
		} else {
			if _, err := os.Stat(defaultConfigPath); errors.Is(err, os.ErrNotExist) {
				return config.Default(), nil
			}
			path = defaultConfigPath
		}
	}
	return config.Load(path)
}

// setupLogger logs to stderr so stdout stays free for documents.
func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// silentLogger is used while a full-screen TUI owns the terminal; any log
// output would corrupt the display.
func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mustConfig loads the config or exits, the way every command starts.
func mustConfig(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupProvider(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (ai.Provider, error) {
	if err := cfg.AI.RequireAPIKey(); err != nil {
		return nil, err
	}

	gen := ai.GenerationConfig{
		Temperature:     cfg.AI.Generation.Temperature,
		TopK:            cfg.AI.Generation.TopK,
		TopP:            cfg.AI.Generation.TopP,
		MaxOutputTokens: cfg.AI.Generation.MaxOutputTokens,
	}
	switch cfg.AI.Backend {
	case config.BackendGenAI:
		logger.Debug("using genai backend", "model", cfg.AI.Model)
		return ai.NewGenAIProvider(ctx, cfg.AI.APIKey, cfg.AI.Model, gen, httpClient)
	default:
		logger.Debug("using rest backend", "model", cfg.AI.Model, "base_url", cfg.AI.BaseURL)
		return ai.NewGeminiProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, gen, httpClient), nil
	}
}

// setupPipeline builds the operation pipeline. The HTTP client has no
// timeout of its own; the pipeline's per-operation deadline bounds each call.
func setupPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	provider, err := setupProvider(ctx, cfg, &http.Client{}, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(provider, cfg.AI.Timeout, logger), nil
}

// sessionStore is the DocumentStore plus its lifecycle.
type sessionStore interface {
	model.DocumentStore
	Close() error
}

// openStore opens the session store and drops sessions past retention.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sessionStore, error) {
	var st sessionStore
	if ephemeral {
		logger.Debug("ephemeral mode, sessions are not persisted")
		st = store.NewMemoryStore()
	} else {
		sqlStore, err := store.NewSQLiteStore(ctx, cfg.Store.Path, logger)
		if err != nil {
			return nil, err
		}
		st = sqlStore
	}

	if err := st.Cleanup(ctx, cfg.Store.Retention); err != nil {
		logger.Warn("failed to clean up old sessions", "error", err)
	}
	return st, nil
}

func setupCompiler(cfg *config.Config, logger *slog.Logger) (*compile.Client, error) {
	httpClient := &http.Client{Timeout: cfg.Compile.Timeout}
	return compile.NewClient(cfg.Compile.URL, cfg.Compile.Compiler, cfg.Compile.CacheSize, httpClient, logger)
}

func loadTemplate(cfg *config.Config) (string, error) {
	return resume.LoadTemplate(cfg.Resume.Template)
}

// withSpinner runs work behind a spinner on stderr when stderr is an
// interactive terminal, and directly otherwise.
func withSpinner(ctx context.Context, label string, work func(ctx context.Context) (string, error)) (string, error) {
	if debug || !isatty.IsTerminal(os.Stderr.Fd()) {
		return work(ctx)
	}
	return studio.RunLoader(ctx, os.Stderr, label, work)
}

// writeDocument writes doc to path, or to stdout when path is empty.
func writeDocument(path, doc string) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, doc)
		return err
	}
	if err := os.WriteFile(path, []byte(doc+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
