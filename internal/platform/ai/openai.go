package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// OpenAIConfig configures any OpenAI-compatible chat-completions endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds the whole HTTP exchange; it is the only timeout applied.
	Timeout time.Duration
}

// NewOpenAIClient builds the underlying API client. It is shared by the
// completion provider and the speech transcriber.
func NewOpenAIClient(cfg OpenAIConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(oc)
}

// OpenAIProvider implements Completer with JSON-mode chat completions.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider validates cfg and returns a provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("ai: model is required")
	}
	return &OpenAIProvider{
		client: NewOpenAIClient(cfg),
		model:  cfg.Model,
	}, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Complete submits req and returns the first choice's content.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	creq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: req.Temperature,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
