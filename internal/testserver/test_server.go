package testserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// ToolFunc implements a fixture tool. A returned error becomes an isError
// result whose text is the error message.
type ToolFunc func(ctx context.Context, req *sdkmcp.CallToolRequest, args map[string]any) (string, error)

// TestServer is an in-process MCP server reached over in-memory transports.
type TestServer struct {
	Server *sdkmcp.Server

	t         *testing.T
	mu        sync.Mutex
	contents  map[string]string
	reads     map[string]int
	subscribe map[string]int
	tokens    map[string]any
	sessions  []*sdkmcp.ServerSession
}

type config struct {
	subscribe bool
	failing   map[string]bool
}

// Option configures a TestServer.
type Option func(*config)

// WithoutSubscribe makes the server not advertise resource subscriptions.
func WithoutSubscribe() Option {
	return func(c *config) { c.subscribe = false }
}

// WithFailingMethod makes the server answer method with an internal error.
func WithFailingMethod(method string) Option {
	return func(c *config) {
		if c.failing == nil {
			c.failing = make(map[string]bool)
		}
		c.failing[method] = true
	}
}

// New creates a server with an echo tool, a greet prompt and a notes template.
func New(t *testing.T, opts ...Option) *TestServer {
	t.Helper()

	cfg := config{subscribe: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	ts := &TestServer{
		t:         t,
		contents:  make(map[string]string),
		reads:     make(map[string]int),
		subscribe: make(map[string]int),
		tokens:    make(map[string]any),
	}

	serverOpts := &sdkmcp.ServerOptions{}
	if cfg.subscribe {
		serverOpts.SubscribeHandler = func(_ context.Context, req *sdkmcp.SubscribeRequest) error {
			ts.mu.Lock()
			ts.subscribe[req.Params.URI]++
			ts.mu.Unlock()
			return nil
		}
		serverOpts.UnsubscribeHandler = func(context.Context, *sdkmcp.UnsubscribeRequest) error {
			return nil
		}
	}

	ts.Server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "wrangler-fixture",
		Version: "0.1.0",
	}, serverOpts)
	if len(cfg.failing) > 0 {
		ts.Server.AddReceivingMiddleware(func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
			return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
				if cfg.failing[method] {
					return nil, fmt.Errorf("%s unavailable", method)
				}
				return next(ctx, method, req)
			}
		})
	}

	ts.AddTool("echo", "Echo the text argument", func(_ context.Context, _ *sdkmcp.CallToolRequest, args map[string]any) (string, error) {
		text, _ := args["text"].(string)
		return text, nil
	})

	ts.Server.AddPrompt(&sdkmcp.Prompt{
		Name:        "greet",
		Description: "Greets someone",
		Arguments:   []*sdkmcp.PromptArgument{{Name: "who", Required: true}},
	}, func(_ context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		return &sdkmcp.GetPromptResult{
			Messages: []*sdkmcp.PromptMessage{{
				Role:    "user",
				Content: &sdkmcp.TextContent{Text: "You are greeting " + req.Params.Arguments["who"]},
			}},
		}, nil
	})

	ts.Server.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: "notes://{name}",
		Name:        "note",
		MIMEType:    "text/plain",
	}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		ts.mu.Lock()
		ts.reads[req.Params.URI]++
		ts.mu.Unlock()
		return &sdkmcp.ReadResourceResult{
			Contents: []*sdkmcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     "note at " + req.Params.URI,
			}},
		}, nil
	})

	t.Cleanup(func() {
		ts.mu.Lock()
		sessions := ts.sessions
		ts.mu.Unlock()
		for _, ss := range sessions {
			_ = ss.Close()
		}
	})

	return ts
}

// AddTool registers or replaces a tool.
func (ts *TestServer) AddTool(name, description string, fn ToolFunc) {
	ts.Server.AddTool(&sdkmcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var args map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, fmt.Errorf("decoding arguments: %w", err)
			}
		}
		out, err := fn(ctx, req, args)
		if err != nil {
			return &sdkmcp.CallToolResult{
				IsError: true,
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
			}, nil
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: out}},
		}, nil
	})
}

// SetResource creates uri or replaces its content. Creating a resource on a
// live server notifies clients that the list changed.
func (ts *TestServer) SetResource(uri, content string) {
	ts.mu.Lock()
	_, exists := ts.contents[uri]
	ts.contents[uri] = content
	ts.mu.Unlock()
	if exists {
		return
	}

	ts.Server.AddResource(&sdkmcp.Resource{
		URI:      uri,
		Name:     uri,
		MIMEType: "text/plain",
	}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		text, ok := ts.contents[req.Params.URI]
		if !ok {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}
		ts.reads[req.Params.URI]++
		ts.tokens[req.Params.URI] = req.Params.GetProgressToken()
		return &sdkmcp.ReadResourceResult{
			Contents: []*sdkmcp.ResourceContents{{URI: req.Params.URI, MIMEType: "text/plain", Text: text}},
		}, nil
	})
}

// RemoveResource deletes uri from the server's list.
func (ts *TestServer) RemoveResource(uri string) {
	ts.mu.Lock()
	delete(ts.contents, uri)
	ts.mu.Unlock()
	ts.Server.RemoveResources(uri)
}

// Updated tells subscribed clients that uri changed.
func (ts *TestServer) Updated(ctx context.Context, uri string) {
	ts.t.Helper()
	require.NoError(ts.t, ts.Server.ResourceUpdated(ctx, &sdkmcp.ResourceUpdatedNotificationParams{URI: uri}))
}

// Reads returns how many times uri was read.
func (ts *TestServer) Reads(uri string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.reads[uri]
}

// ProgressToken returns the progress token carried by the latest read of uri.
func (ts *TestServer) ProgressToken(uri string) any {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.tokens[uri]
}

// Subscribes returns how many subscribe requests arrived for uri.
func (ts *TestServer) Subscribes(uri string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.subscribe[uri]
}

// Session returns the most recently connected server session.
func (ts *TestServer) Session() *sdkmcp.ServerSession {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.sessions) == 0 {
		return nil
	}
	return ts.sessions[len(ts.sessions)-1]
}

// Pipe connects a fresh server session and returns the client end.
func (ts *TestServer) Pipe() sdkmcp.Transport {
	ts.t.Helper()
	clientT, serverT := sdkmcp.NewInMemoryTransports()
	ss, err := ts.Server.Connect(context.Background(), serverT, nil)
	require.NoError(ts.t, err)

	ts.mu.Lock()
	ts.sessions = append(ts.sessions, ss)
	ts.mu.Unlock()
	return clientT
}

// StatusError is a transport failure carrying an HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connect failed: %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) StatusCode() int { return e.Code }

// FailingTransport fails every connection attempt with Err.
type FailingTransport struct {
	Err error
}

func (f FailingTransport) Connect(context.Context) (sdkmcp.Connection, error) {
	if f.Err == nil {
		return nil, errors.New("connection refused")
	}
	return nil, f.Err
}
