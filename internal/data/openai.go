package data

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

const completionTimeout = 60 * time.Second

// openaiRepo implements the AI provider boundary over any
// OpenAI-compatible completion endpoint.
type openaiRepo struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIRepo creates a completion repository. baseURL may be empty
// for the default endpoint.
func NewOpenAIRepo(apiKey, baseURL, defaultModel string) repo.AIProviderRepo {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if defaultModel == "" {
		defaultModel = openai.GPT4oMini
	}
	return &openaiRepo{
		client:       openai.NewClientWithConfig(config),
		defaultModel: defaultModel,
	}
}

// Complete sends one chat completion and returns the raw model text.
func (r *openaiRepo) Complete(ctx context.Context, req *repo.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = r.defaultModel
	}

	creq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.WantJSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := r.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
