package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/mcp-wrangler/internal/domain/task"
)

// Invoker performs the two operations that can report progress.
type Invoker interface {
	CallTool(ctx context.Context, params *sdkmcp.CallToolParams) (*sdkmcp.CallToolResult, error)
	ReadResource(ctx context.Context, params *sdkmcp.ReadResourceParams) (*sdkmcp.ReadResourceResult, error)
}

// TaskTracker records cancelable operations.
type TaskTracker interface {
	Create(token, description string, cancel task.CancelFunc) error
	Complete(token string)
}

// sessionInvoker calls through to the live session.
type sessionInvoker struct {
	c *Client
}

func (s sessionInvoker) CallTool(ctx context.Context, params *sdkmcp.CallToolParams) (*sdkmcp.CallToolResult, error) {
	session, err := s.c.currentSession()
	if err != nil {
		return nil, err
	}
	return session.CallTool(ctx, params)
}

func (s sessionInvoker) ReadResource(ctx context.Context, params *sdkmcp.ReadResourceParams) (*sdkmcp.ReadResourceResult, error) {
	session, err := s.c.currentSession()
	if err != nil {
		return nil, err
	}
	return session.ReadResource(ctx, params)
}

// progressInvoker attaches a progress token to each call and registers it as a
// cancelable task for the duration of the call. Progress notifications carrying
// the token reach the update stream through the client's progress handler.
type progressInvoker struct {
	next     Invoker
	tasks    TaskTracker
	newToken func() string
	logger   *slog.Logger
}

func (p *progressInvoker) CallTool(ctx context.Context, params *sdkmcp.CallToolParams) (*sdkmcp.CallToolResult, error) {
	// SetProgressToken only writes into an existing map.
	if params.Meta == nil {
		params.Meta = sdkmcp.Meta{}
	}
	ctx, done := p.track(ctx, "tool "+params.Name, params)
	defer done()
	res, err := p.next.CallTool(ctx, params)
	return res, withCause(ctx, err)
}

func (p *progressInvoker) ReadResource(ctx context.Context, params *sdkmcp.ReadResourceParams) (*sdkmcp.ReadResourceResult, error) {
	if params.Meta == nil {
		params.Meta = sdkmcp.Meta{}
	}
	ctx, done := p.track(ctx, "resource "+params.URI, params)
	defer done()
	res, err := p.next.ReadResource(ctx, params)
	return res, withCause(ctx, err)
}

// withCause reports an error that arrived after cancellation as the
// cancellation cause, so a late server reply is not mistaken for a tool error.
func withCause(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
		return fmt.Errorf("%v: %w", err, cause)
	}
	return err
}

func (p *progressInvoker) track(ctx context.Context, description string, params interface{ SetProgressToken(any) }) (context.Context, func()) {
	token := p.newToken()
	params.SetProgressToken(token)

	ctx, cancel := context.WithCancelCause(ctx)
	err := p.tasks.Create(token, description, func(reason string) {
		if reason == "" {
			reason = "cancelled"
		}
		cancel(errors.New(reason))
	})
	if err != nil {
		p.logger.Warn("task not tracked", "token", token, "error", err)
	}

	return ctx, func() {
		p.tasks.Complete(token)
		cancel(nil)
	}
}

// CallTool invokes a tool and returns its text output. A failure reported by
// the server, as an isError result or a JSON-RPC error, is returned as
// *ToolError carrying the server's message.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.invoke.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		var wireErr *jsonrpc.Error
		if ctx.Err() == nil && errors.As(err, &wireErr) {
			return "", &ToolError{Tool: name, Message: wireErr.Message}
		}
		return "", fmt.Errorf("calling tool %s: %w", name, err)
	}
	text := toolText(res)
	if res.IsError {
		return "", &ToolError{Tool: name, Message: text}
	}
	return text, nil
}

// ReadResource performs a live read of uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	res, err := c.invoke.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: uri})
	if err != nil {
		return "", err
	}
	return resourceText(res), nil
}

// ReadTemplate expands {name} placeholders in uriTemplate from args and reads
// the result live. Template reads are never cached.
func (c *Client) ReadTemplate(ctx context.Context, uriTemplate string, args map[string]string) (string, error) {
	uri := ExpandTemplate(uriTemplate, args)
	content, err := c.ReadResource(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", uri, err)
	}
	return content, nil
}

// Subscribe asks the server for update notifications on uri.
func (c *Client) Subscribe(ctx context.Context, uri string) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	if err := session.Subscribe(ctx, &sdkmcp.SubscribeParams{URI: uri}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", uri, err)
	}
	return nil
}

// GetPrompt fetches a prompt and returns the text of its first message, or ""
// when the prompt has no text.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (string, error) {
	session, err := c.currentSession()
	if err != nil {
		return "", err
	}
	res, err := session.GetPrompt(ctx, &sdkmcp.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("getting prompt %s: %w", name, err)
	}
	if len(res.Messages) == 0 || res.Messages[0] == nil || res.Messages[0].Content == nil {
		return "", nil
	}
	if tc, ok := res.Messages[0].Content.(*sdkmcp.TextContent); ok {
		return tc.Text, nil
	}
	data, err := json.Marshal(res.Messages[0].Content)
	if err != nil {
		return "", nil
	}
	return string(data), nil
}

// ExpandTemplate replaces each {key} in tmpl with args[key].
func ExpandTemplate(tmpl string, args map[string]string) string {
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func toolText(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	var raw any = res.Content
	if res.StructuredContent != nil {
		raw = res.StructuredContent
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	return string(data)
}

func resourceText(res *sdkmcp.ReadResourceResult) string {
	var parts []string
	for _, content := range res.Contents {
		if content != nil && content.Text != "" {
			parts = append(parts, content.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	if len(res.Contents) == 0 {
		return ""
	}
	data, err := json.Marshal(res.Contents)
	if err != nil {
		return ""
	}
	return string(data)
}
