package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-responder/internal/domain/entity"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIClient struct {
	client *openai.Client
	model  openai.ChatModel
}

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIClient{
		client: &client,
		model:  openai.ChatModel(model),
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req entity.LLMRequest) (*entity.LLMResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:            c.model,
		Messages:         messages,
		MaxTokens:        openai.Int(int64(req.MaxTokens)),
		Temperature:      openai.Float(float64(req.Temperature)),
		PresencePenalty:  openai.Float(float64(req.PresencePenalty)),
		FrequencyPenalty: openai.Float(float64(req.FrequencyPenalty)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from openai")
	}

	return &entity.LLMResponse{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokenCount: int(resp.Usage.TotalTokens),
		Latency:    time.Since(start).Milliseconds(),
	}, nil
}
