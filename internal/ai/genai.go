package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	genai "google.golang.org/genai"

	"github.com/amishk599/resumetailor/internal/model"
)

// GenAIProvider implements Provider through the official Gemini SDK.
type GenAIProvider struct {
	cli        *genai.Client
	model      string
	generation GenerationConfig
}

// NewGenAIProvider creates an SDK-backed provider. httpClient may be nil.
func NewGenAIProvider(ctx context.Context, apiKey, modelName string, generation GenerationConfig, httpClient *http.Client) (*GenAIProvider, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIProvider{cli: cli, model: modelName, generation: generation}, nil
}

// Generate sends prompt as a single user turn.
func (p *GenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.cli.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		p.contentConfig(),
	)
	if err != nil {
		return "", requestFailed(ctx, err)
	}
	return firstText(resp)
}

func (p *GenAIProvider) contentConfig() *genai.GenerateContentConfig {
	temperature := float32(p.generation.Temperature)
	topP := float32(p.generation.TopP)
	topK := float32(p.generation.TopK)
	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: int32(p.generation.MaxOutputTokens),
	}
}

// firstText returns the first candidate's first part text.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", model.ErrEmptyGeneration
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return "", model.ErrEmptyGeneration
	}
	if c.Content.Parts[0].Text == "" {
		return "", model.ErrEmptyGeneration
	}
	return c.Content.Parts[0].Text, nil
}

// requestFailed maps an SDK error onto RequestFailedError, keeping the
// server-provided message when the SDK surfaced one.
func requestFailed(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &model.RequestFailedError{StatusCode: apiErr.Code, Message: apiMessage(apiErr), Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &model.RequestFailedError{StatusCode: apiErrPtr.Code, Message: apiMessage(*apiErrPtr), Err: err}
	}
	return &model.RequestFailedError{Message: transportMessage(ctx, err), Err: err}
}

func apiMessage(e genai.APIError) string {
	if e.Message != "" {
		return e.Message
	}
	return genericFailure
}
