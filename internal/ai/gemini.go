package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/resumetailor/internal/model"
)

// genericFailure is reported when a failed response carries no error message.
const genericFailure = "Failed to call Gemini API"

// GeminiProvider calls the Gemini generateContent REST endpoint.
type GeminiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	generation GenerationConfig
	httpClient *http.Client
}

// NewGeminiProvider creates a provider targeting baseURL, e.g.
// https://generativelanguage.googleapis.com/v1beta.
func NewGeminiProvider(baseURL, apiKey, modelName string, generation GenerationConfig, httpClient *http.Client) *GeminiProvider {
	return &GeminiProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      modelName,
		generation: generation,
		httpClient: httpClient,
	}
}

// generateRequest mirrors the generateContent request body.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse mirrors the relevant fields of the generateContent response.
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate sends prompt as a single user turn and returns the first
// candidate's first text part.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     p.generation.Temperature,
			TopK:            p.generation.TopK,
			TopP:            p.generation.TopP,
			MaxOutputTokens: p.generation.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &model.RequestFailedError{Message: transportMessage(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.RequestFailedError{StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}

	var genResp generateResponse
	parseErr := json.Unmarshal(respBytes, &genResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := genericFailure
		if parseErr == nil && genResp.Error != nil && genResp.Error.Message != "" {
			msg = genResp.Error.Message
		}
		return "", &model.RequestFailedError{StatusCode: resp.StatusCode, Message: msg}
	}

	if parseErr != nil {
		return "", &model.RequestFailedError{StatusCode: resp.StatusCode, Message: "parse response: " + parseErr.Error(), Err: parseErr}
	}
	if genResp.Error != nil && genResp.Error.Message != "" {
		return "", &model.RequestFailedError{StatusCode: resp.StatusCode, Message: genResp.Error.Message}
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", model.ErrEmptyGeneration
	}
	text := genResp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", model.ErrEmptyGeneration
	}
	return text, nil
}

// transportMessage describes a failed round trip without leaking the request
// URL, which carries the API key.
func transportMessage(ctx context.Context, err error) string {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr.Error()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
