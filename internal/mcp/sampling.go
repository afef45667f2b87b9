package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/mcp-wrangler/internal/broadcast"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/llm"
)

// Protocol stop reasons for sampling results.
const (
	StopReasonEndTurn      = "endTurn"
	StopReasonStopSequence = "stopSequence"
	StopReasonMaxTokens    = "maxTokens"
)

// SamplingRequest is published when the server asks for a completion and a
// user decision is needed.
type SamplingRequest struct {
	ID string `json:"id"`
	*sdkmcp.CreateMessageParams
}

func (c *Client) handleCreateMessage(ctx context.Context, req *sdkmcp.CreateMessageRequest) (*sdkmcp.CreateMessageResult, error) {
	params := req.Params
	if params == nil {
		params = &sdkmcp.CreateMessageParams{}
	}
	return c.Sample(ctx, params)
}

// Sample runs the approval handshake for one sampling request: publish it,
// wait for the user's decision and, if approved, complete it with the
// sampling model.
func (c *Client) Sample(ctx context.Context, params *sdkmcp.CreateMessageParams) (*sdkmcp.CreateMessageResult, error) {
	id := c.opts.NewID()
	pending, err := c.deps.Decisions.Register(id)
	if err != nil {
		return nil, fmt.Errorf("registering sampling request: %w", err)
	}

	c.logger.Info("sampling requested", "id", id, "messages", len(params.Messages))
	c.publish(broadcast.ChannelSamplingRequest, SamplingRequest{ID: id, CreateMessageParams: params})
	c.deps.Activity.Record(ctx, activity.TypeSamplingRequested, "sampling requested by server", map[string]any{"id": id})

	waitCtx := ctx
	if c.opts.SamplingTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.opts.SamplingTimeout)
		defer cancel()
	}
	approved, err := pending.Wait(waitCtx)
	if err != nil {
		c.logger.Warn("sampling request abandoned", "id", id, "error", err)
		return nil, fmt.Errorf("awaiting sampling decision %s: %w", id, err)
	}
	if !approved {
		c.logger.Info("sampling denied", "id", id)
		c.deps.Activity.Record(ctx, activity.TypeSamplingDenied, "sampling denied", map[string]any{"id": id})
		return nil, ErrSamplingRejected
	}
	c.deps.Activity.Record(ctx, activity.TypeSamplingApproved, "sampling approved", map[string]any{"id": id})

	if c.deps.Sampler == nil {
		return nil, fmt.Errorf("sampling %s: no completion service configured", id)
	}

	chat := llm.ChatRequest{
		Model:     c.opts.SamplingModel,
		System:    params.SystemPrompt,
		MaxTokens: int(params.MaxTokens),
		Stop:      params.StopSequences,
	}
	// The SDK decodes an absent temperature as 0, so only a non-zero value is
	// known to come from the server.
	if params.Temperature != 0 {
		temperature := params.Temperature
		chat.Temperature = &temperature
	}
	for _, m := range params.Messages {
		if m == nil {
			continue
		}
		if tc, ok := m.Content.(*sdkmcp.TextContent); ok {
			chat.Messages = append(chat.Messages, llm.ChatMessage{Role: string(m.Role), Content: tc.Text})
		}
	}

	completion, err := c.deps.Sampler.Complete(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("sampling %s: %w", id, err)
	}

	model := completion.Model
	if model == "" {
		model = c.opts.SamplingModel
	}
	result := &sdkmcp.CreateMessageResult{
		Content:    &sdkmcp.TextContent{Text: completion.Text},
		Model:      model,
		Role:       "assistant",
		StopReason: stopReason(completion.FinishReason),
	}
	c.publish(broadcast.ChannelSamplingResponse, result)
	return result, nil
}

// stopReason maps a completion finish reason onto the protocol's stop reasons.
func stopReason(finish string) string {
	switch finish {
	case "stop":
		return StopReasonStopSequence
	case "length":
		return StopReasonMaxTokens
	default:
		return StopReasonEndTurn
	}
}
