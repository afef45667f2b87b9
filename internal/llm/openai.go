package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when a chat completion carries no choices.
var ErrNoChoices = errors.New("completion returned no choices")

// ChatClient runs chat completions and model listing through go-openai.
type ChatClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewChatClient creates a chat client. An empty baseURL keeps the library default.
func NewChatClient(apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) *ChatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ChatClient{client: openai.NewClientWithConfig(cfg), logger: logger}
}

// Complete sends req as a chat completion and returns its first choice.
func (c *ChatClient) Complete(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stop:      req.Stop,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
		if chatReq.Temperature == 0 {
			// go-openai omits a zero temperature; the smallest float32
			// stands in for it on the wire.
			chatReq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	choice := resp.Choices[0]
	c.logger.Debug("chat completion", "model", resp.Model, "finish_reason", choice.FinishReason)
	return &ChatResult{
		Model:        resp.Model,
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// ListModels returns the models the completion service offers.
func (c *ChatClient) ListModels(ctx context.Context) ([]Model, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	out := make([]Model, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, Model{ID: m.ID, Object: m.Object, OwnedBy: m.OwnedBy, Created: m.CreatedAt})
	}
	return out, nil
}
