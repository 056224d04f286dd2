package ai

import "context"

// Provider sends a prompt to a text-generation model and returns the raw
// text of its first candidate. Implementations make exactly one request per
// call and never retry.
//
// Errors are *model.RequestFailedError for transport or API failures and
// model.ErrEmptyGeneration when the model answered without text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationConfig holds the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// DefaultGenerationConfig returns the parameters used when none are configured.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 8192,
	}
}
