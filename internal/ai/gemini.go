package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultVertexLocation = "us-central1"
)

const systemInstruction = "You are a technical writer. You write clear, accurate README files in GitHub-flavored Markdown."

// GeminiClient generates text with Gemini, either through the Gemini API
// (API key) or through Vertex AI (project and location).
type GeminiClient struct {
	config *ClientConfig
	client *genai.Client
}

// genaiConfig maps our config onto the SDK's. Vertex AI is used when the
// provider asks for it or when no API key is available.
func genaiConfig(config *ClientConfig) genai.ClientConfig {
	cc := genai.ClientConfig{}
	useVertex := config.Provider == ProviderVertexAI || strings.TrimSpace(config.APIKey) == ""
	if useVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.ProjectID
		cc.Location = config.Location
		if cc.Location == "" {
			cc.Location = DefaultVertexLocation
		}
	} else {
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = config.APIKey
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	return cc
}

// NewGeminiClient creates a new client for the Google Gemini API.
func NewGeminiClient(ctx context.Context, config *ClientConfig) (*GeminiClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	cc := genaiConfig(config)
	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		config: config,
		client: client,
	}, nil
}

func (c *GeminiClient) provider() Provider {
	if c.config.Provider == "" {
		return ProviderGemini
	}
	return c.config.Provider
}

// Generate sends one prompt and returns the text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if c.client == nil {
		return "", generationError(c.provider(), errors.New("client not initialized"))
	}

	temp := opts.Temperature
	cfg := genai.GenerateContentConfig{
		Temperature:       &temp,
		MaxOutputTokens:   opts.MaxOutputTokens,
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), &cfg)
	if err != nil {
		return "", generationError(c.provider(), err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", generationError(c.provider(), ErrEmptyResponse)
	}
	return text, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
