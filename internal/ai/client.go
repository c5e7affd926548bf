package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions bound a single generation call.
type GenerateOptions struct {
	Temperature     float32
	MaxOutputTokens int32
}

const (
	DefaultTemperature     float32 = 0.7
	DefaultMaxOutputTokens int32   = 4096
	DefaultTimeout                 = 120 * time.Second
)

// DefaultOptions returns the options used when the caller sets none.
func DefaultOptions() GenerateOptions {
	return GenerateOptions{Temperature: DefaultTemperature, MaxOutputTokens: DefaultMaxOutputTokens}
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderVertexAI Provider = "vertexai"
	ProviderOpenAI   Provider = "openai"
	ProviderStub     Provider = "stub"
)

// Valid reports whether p names a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderVertexAI, ProviderOpenAI, ProviderStub:
		return true
	}
	return false
}

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	Provider  Provider
	APIKey    string
	Model     string
	ProjectID string
	Location  string
	BaseURL   string
	Timeout   time.Duration
}

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("provider returned no text")

// GenerationError is a failed or empty generation. It is distinct from
// repository access errors so callers never ask for credentials because
// of it.
type GenerationError struct {
	Provider Provider
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err is or wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func generationError(p Provider, err error) error {
	return &GenerationError{Provider: p, Err: err}
}

// NewClient creates a new AI client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Generator, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGemini, ProviderVertexAI:
		return NewGeminiClient(ctx, config)
	case ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient writes a fixed README built from the prompt's first lines.
// It lets the pipeline run end to end without a provider.
type StubClient struct{}

// NewStubClient creates a new StubClient
func NewStubClient() *StubClient {
	return &StubClient{}
}

func (s *StubClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", generationError(ProviderStub, err)
	}

	title := "Project"
	for _, line := range strings.Split(prompt, "\n") {
		if name, ok := strings.CutPrefix(line, "Repository: "); ok {
			title = strings.TrimSpace(name)
			break
		}
	}

	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	for _, line := range strings.Split(prompt, "\n") {
		if desc, ok := strings.CutPrefix(line, "Description: "); ok {
			b.WriteString(strings.TrimSpace(desc) + "\n\n")
			break
		}
	}
	b.WriteString("## Overview\n\nThis README was generated without a language model.\n")
	return b.String(), nil
}
