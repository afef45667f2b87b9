package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// APIError is a non-2xx answer from the completion service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.StatusCode, e.Message)
}

// ResponsesClient talks to an OpenAI-compatible Responses endpoint through
// openai-go.
type ResponsesClient struct {
	client openai.Client
	logger *slog.Logger
}

// NewResponsesClient creates a client for baseURL (for example
// https://api.openai.com/v1). An empty baseURL keeps the library default and a
// nil httpClient uses http.DefaultClient.
func NewResponsesClient(apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) *ResponsesClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &ResponsesClient{client: openai.NewClient(opts...), logger: logger}
}

// Respond sends req to the Responses endpoint and decodes text and function calls.
func (c *ResponsesClient) Respond(ctx context.Context, req Request) (*Response, error) {
	params := responses.ResponseNewParams{
		Model:      shared.ResponsesModel(req.Model),
		Input:      responses.ResponseNewParamsInputUnion{OfInputItemList: inputParams(req.Input)},
		Truncation: responses.ResponseNewParamsTruncationAuto,
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = param.NewOpt(req.PreviousResponseID)
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, toolParam(tool))
	}
	if req.ToolChoice != "" {
		params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
			OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptions(req.ToolChoice)),
		}
	}
	c.logger.Debug("completion request", "model", req.Model, "items", len(req.Input), "tools", len(req.Tools))

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("calling completion service: %w", err)
	}

	out := &Response{ID: resp.ID, Text: resp.OutputText(), Status: string(resp.Status)}
	for _, item := range resp.Output {
		if item.Type == string(ItemFunctionCall) {
			out.Calls = append(out.Calls, FunctionCall{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments})
		}
	}
	c.logger.Debug("completion response", "id", out.ID, "status", out.Status, "calls", len(out.Calls))
	return out, nil
}

func inputParams(items []InputItem) responses.ResponseInputParam {
	out := make(responses.ResponseInputParam, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case ItemFunctionCall:
			out = append(out, responses.ResponseInputItemParamOfFunctionCall(item.Arguments, item.CallID, item.Name))
		case ItemFunctionCallOutput:
			out = append(out, responses.ResponseInputItemParamOfFunctionCallOutput(item.CallID, item.Output))
		default:
			out = append(out, responses.ResponseInputItemParamOfMessage(item.Content, responses.EasyInputMessageRole(item.Role)))
		}
	}
	return out
}

// toolParam offers t as a non-strict function tool. MCP input schemas are not
// written for strict mode.
func toolParam(t FunctionTool) responses.ToolUnionParam {
	schema := t.Parameters
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	tool := responses.ToolParamOfFunction(t.Name, schema, false)
	if t.Description != "" {
		tool.OfFunction.Description = param.NewOpt(t.Description)
	}
	return tool
}
