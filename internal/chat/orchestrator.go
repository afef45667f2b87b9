package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rpggio/mcp-wrangler/internal/capability"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/llm"
)

// Protocol is the subset of the protocol client a turn needs.
type Protocol interface {
	GetPrompt(ctx context.Context, name string, args map[string]string) (string, error)
	ReadTemplate(ctx context.Context, uriTemplate string, args map[string]string) (string, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// ResourceReader reads resources through the capability cache.
type ResourceReader interface {
	ReadCached(ctx context.Context, uri string) (string, error)
	Refresh(ctx context.Context, uri string) (string, error)
}

// ToolSet reports the tools the model may call.
type ToolSet interface {
	EnabledTools() []capability.Tool
}

// Options configures an Orchestrator.
type Options struct {
	// Model is used when a request names none.
	Model string
	// MaxToolRounds caps completion round trips that return tool calls.
	// Zero means no cap.
	MaxToolRounds int
}

// Orchestrator runs conversation turns.
type Orchestrator struct {
	protocol  Protocol
	resources ResourceReader
	tools     ToolSet
	responder llm.Responder
	activity  activity.Recorder
	opts      Options
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil recorder drops activity.
func NewOrchestrator(protocol Protocol, resources ResourceReader, tools ToolSet, responder llm.Responder, recorder activity.Recorder, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = activity.Discard
	}
	return &Orchestrator{
		protocol:  protocol,
		resources: resources,
		tools:     tools,
		responder: responder,
		activity:  recorder,
		opts:      opts,
		logger:    logger,
	}
}

// Handle runs one turn: it assembles context, calls the completion service and
// executes requested tool calls until the model answers without calls. Only a
// completion-service failure fails the turn.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Reply, error) {
	input := o.buildContext(ctx, req)

	model := req.Model
	if model == "" {
		model = o.opts.Model
	}
	completion := llm.Request{
		Model:              model,
		Input:              input,
		PreviousResponseID: req.PreviousResponseID,
	}
	for _, t := range o.tools.EnabledTools() {
		completion.Tools = append(completion.Tools, llm.FunctionTool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	if req.ToolRequired && len(completion.Tools) > 0 {
		completion.ToolChoice = "required"
	}

	toolCalls := []ToolCall{}
	for round := 0; ; round++ {
		resp, err := o.responder.Respond(ctx, completion)
		if err != nil {
			return nil, fmt.Errorf("requesting completion: %w", err)
		}
		if resp.Status == llm.StatusIncomplete {
			o.logger.Warn("completion incomplete", "model", model, "response_id", resp.ID)
		}
		if len(resp.Calls) == 0 {
			o.activity.Record(ctx, activity.TypeTurnCompleted,
				fmt.Sprintf("turn completed with %d tool calls", len(toolCalls)),
				map[string]any{"model": model, "response_id": resp.ID, "status": resp.Status, "tool_calls": len(toolCalls)})
			return &Reply{Reply: resp.Text, ToolCalls: toolCalls, ResponseID: resp.ID}, nil
		}
		if o.opts.MaxToolRounds > 0 && round >= o.opts.MaxToolRounds {
			return nil, fmt.Errorf("%w: limit %d", ErrTooManyToolRounds, o.opts.MaxToolRounds)
		}

		calls, outputs := o.runTools(ctx, resp.Calls)
		toolCalls = append(toolCalls, calls...)
		for i, call := range resp.Calls {
			completion.Input = append(completion.Input, llm.CallItem(call), llm.OutputItem(call.CallID, outputs[i]))
		}
	}
}

func (o *Orchestrator) buildContext(ctx context.Context, req Request) []llm.InputItem {
	var input []llm.InputItem

	if req.PromptName != "" {
		text, err := o.protocol.GetPrompt(ctx, req.PromptName, req.PromptArgs)
		if err != nil {
			o.logger.Error("fetching prompt", "prompt", req.PromptName, "error", err)
		} else if text != "" {
			input = append(input, llm.SystemMessage(text))
		}
	}

	for _, sel := range req.Resources {
		var (
			content string
			err     error
		)
		if sel.UseCached {
			content, err = o.resources.ReadCached(ctx, sel.URI)
		} else {
			content, err = o.resources.Refresh(ctx, sel.URI)
		}
		if err != nil {
			o.logger.Error("reading resource", "uri", sel.URI, "error", err)
			continue
		}
		input = append(input, llm.SystemMessage(fmt.Sprintf("Resource (%s): %s", sel.URI, content)))
	}

	for _, sel := range req.Templates {
		content, err := o.protocol.ReadTemplate(ctx, sel.URI, sel.Args)
		if err != nil {
			o.logger.Error("reading template", "uri", sel.URI, "error", err)
			continue
		}
		input = append(input, llm.SystemMessage(fmt.Sprintf("Template (%s): %s", sel.URI, content)))
	}

	return append(input, llm.UserMessage(req.Message))
}

// runTools executes calls concurrently. Every call gets an output; a failure
// becomes "Error: <message>".
func (o *Orchestrator) runTools(ctx context.Context, calls []llm.FunctionCall) ([]ToolCall, []string) {
	made := make([]ToolCall, len(calls))
	outputs := make([]string, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		args, argErr := decodeArgs(call.Arguments)
		made[i] = ToolCall{Name: call.Name, Args: args}

		g.Go(func() error {
			if argErr != nil {
				outputs[i] = "Error: " + argErr.Error()
				return nil
			}
			out, err := o.protocol.CallTool(ctx, call.Name, args)
			if err != nil {
				o.logger.Error("tool call failed", "tool", call.Name, "call_id", call.CallID, "error", err)
				o.activity.Record(ctx, activity.TypeToolFailed, fmt.Sprintf("tool %s failed", call.Name),
					map[string]any{"tool": call.Name, "error": err.Error()})
				outputs[i] = "Error: " + err.Error()
				return nil
			}
			o.activity.Record(ctx, activity.TypeToolCalled, fmt.Sprintf("tool %s called", call.Name),
				map[string]any{"tool": call.Name, "args": args})
			outputs[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return made, outputs
}

func decodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
