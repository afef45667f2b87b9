package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/mcp-wrangler/internal/broadcast"
	"github.com/rpggio/mcp-wrangler/internal/capability"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/domain/decision"
	"github.com/rpggio/mcp-wrangler/internal/domain/root"
	"github.com/rpggio/mcp-wrangler/internal/domain/task"
	"github.com/rpggio/mcp-wrangler/internal/llm"
)

// State is the connection state of the client.
type State string

const (
	StateDisconnected       State = "disconnected"
	StateConnectingPrimary  State = "connecting_primary"
	StateConnectingFallback State = "connecting_fallback"
	StateConnected          State = "connected"
)

// TransportKind selects one of the two wire transports.
type TransportKind string

const (
	TransportStreamable TransportKind = "streamable-http"
	TransportSSE        TransportKind = "sse"
)

// TransportFactory builds a fresh transport of the given kind for one attempt.
type TransportFactory func(kind TransportKind) sdkmcp.Transport

// HTTPTransports returns a factory for the real HTTP transports on endpoint.
// Streamable attempts record the status of a rejected POST so that any 4xx
// answer, not only 405, switches to SSE.
func HTTPTransports(endpoint string, httpClient *http.Client) TransportFactory {
	return func(kind TransportKind) sdkmcp.Transport {
		if kind == TransportSSE {
			return &sdkmcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: httpClient}
		}
		return newStreamableTransport(endpoint, httpClient)
	}
}

// Options configures a Client.
type Options struct {
	// Transports defaults to HTTPTransports(Endpoint, nil).
	Transports      TransportFactory
	Endpoint        string
	RetryBackoff    time.Duration
	PingInterval    time.Duration
	SamplingModel   string
	SamplingTimeout time.Duration
	// NewID generates sampling request ids and progress tokens.
	NewID func() string
}

// Deps are the collaborators the client reads and writes.
type Deps struct {
	Cache     *capability.Cache
	Decisions *decision.Registry
	Tasks     *task.Registry
	Roots     *root.Store
	Publisher broadcast.Publisher
	Sampler   llm.Completer
	Activity  activity.Recorder
}

// Client owns one logical connection to an MCP server.
type Client struct {
	opts   Options
	deps   Deps
	logger *slog.Logger
	sdk    *sdkmcp.Client
	invoke Invoker
	// rootsMu keeps the root list and the SDK's root set changing together.
	rootsMu sync.Mutex

	mu                sync.RWMutex
	state             State
	kind              TransportKind
	session           *sdkmcp.ClientSession
	capabilities      *sdkmcp.ServerCapabilities
	supportsSubscribe bool

	notifications chan func(context.Context)
	done          chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

// New creates a disconnected client. Connect must be called before use.
func New(opts Options, deps Deps, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Transports == nil {
		opts.Transports = HTTPTransports(opts.Endpoint, nil)
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if deps.Cache == nil {
		deps.Cache = capability.NewCache()
	}
	if deps.Decisions == nil {
		deps.Decisions = decision.NewRegistry()
	}
	if deps.Tasks == nil {
		deps.Tasks = task.NewRegistry(logger)
	}
	if deps.Roots == nil {
		deps.Roots = root.NewStore()
	}
	if deps.Publisher == nil {
		deps.Publisher = broadcast.New(logger)
	}
	if deps.Activity == nil {
		deps.Activity = activity.Discard
	}

	c := &Client{
		opts:          opts,
		deps:          deps,
		logger:        logger,
		state:         StateDisconnected,
		notifications: make(chan func(context.Context), 64),
		done:          make(chan struct{}),
	}

	c.sdk = sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "mcp-wrangler",
		Version: "0.1.0",
	}, &sdkmcp.ClientOptions{
		CreateMessageHandler:        c.handleCreateMessage,
		ProgressNotificationHandler: c.handleProgress,
		ResourceUpdatedHandler:      c.handleResourceUpdated,
		ResourceListChangedHandler:  c.handleResourceListChanged,
		PromptListChangedHandler:    c.handlePromptListChanged,
		ToolListChangedHandler:      c.handleToolListChanged,
	})
	c.sdk.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))
	c.sdk.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"), c.answerRoots)

	for _, r := range deps.Roots.List() {
		c.sdk.AddRoots(&sdkmcp.Root{Name: r.Name, URI: r.URI})
	}

	c.invoke = &progressInvoker{
		next:     sessionInvoker{c},
		tasks:    deps.Tasks,
		newToken: opts.NewID,
		logger:   logger,
	}

	c.wg.Add(1)
	go c.runNotifications()

	return c
}

// Connect negotiates a transport and retries until it succeeds or ctx ends.
// The streamable transport is tried first; an HTTP 4xx answer switches to the
// SSE transport for good. Any other failure retries the same transport after
// the backoff.
func (c *Client) Connect(ctx context.Context) error {
	kind := TransportStreamable
	c.setState(StateConnectingPrimary)

	var session *sdkmcp.ClientSession
	for {
		transport := c.opts.Transports(kind)
		var err error
		session, err = c.sdk.Connect(ctx, transport, nil)
		if err == nil {
			break
		}
		err = withRejectedStatus(transport, err)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		if kind == TransportStreamable && isClientError(err) {
			c.logger.Warn("streamable transport rejected, falling back to SSE", "endpoint", c.opts.Endpoint, "error", err)
			kind = TransportSSE
			c.setState(StateConnectingFallback)
			continue
		}
		c.logger.Error("transport connect failed, retrying", "transport", kind, "backoff", c.opts.RetryBackoff, "error", err)

		timer := time.NewTimer(c.opts.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-c.done:
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}
	}

	select {
	case <-c.done:
		_ = session.Close()
		return ErrClosed
	default:
	}

	var caps *sdkmcp.ServerCapabilities
	if init := session.InitializeResult(); init != nil {
		caps = init.Capabilities
	}

	c.mu.Lock()
	c.session = session
	c.kind = kind
	c.state = StateConnected
	c.capabilities = caps
	c.supportsSubscribe = caps != nil && caps.Resources != nil && caps.Resources.Subscribe
	c.mu.Unlock()

	c.logger.Info("connected to MCP server", "transport", kind, "endpoint", c.opts.Endpoint, "subscribe", c.SupportsSubscribe())

	c.discover(ctx)

	if c.opts.PingInterval > 0 {
		c.wg.Add(1)
		go c.runPing(c.opts.PingInterval)
	}
	return nil
}

// Close ends the session and stops background work.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		session := c.session
		c.session = nil
		c.state = StateDisconnected
		c.mu.Unlock()
		if session != nil {
			err = session.Close()
		}
		c.wg.Wait()
	})
	return err
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Transport returns the transport kind in use once connected.
func (c *Client) Transport() TransportKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// SupportsSubscribe reports whether the server advertised resource subscriptions.
func (c *Client) SupportsSubscribe() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsSubscribe
}

// Capabilities returns the server's declared capabilities, or nil before connect.
func (c *Client) Capabilities() *sdkmcp.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Cache returns the capability cache the client maintains.
func (c *Client) Cache() *capability.Cache {
	return c.deps.Cache
}

// Tasks returns the task registry fed by progress-tracked calls.
func (c *Client) Tasks() *task.Registry {
	return c.deps.Tasks
}

func (c *Client) currentSession() (*sdkmcp.ClientSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// Info describes the connection for diagnostics.
type Info struct {
	Endpoint     string                     `json:"url"`
	State        State                      `json:"state"`
	Transport    TransportKind              `json:"transport,omitempty"`
	Capabilities *sdkmcp.ServerCapabilities `json:"capabilities,omitempty"`
	capability.Snapshot
}

// Info returns the connection state and the current capability snapshot.
func (c *Client) Info() Info {
	c.mu.RLock()
	info := Info{
		Endpoint:     c.opts.Endpoint,
		State:        c.state,
		Transport:    c.kind,
		Capabilities: c.capabilities,
	}
	c.mu.RUnlock()
	info.Snapshot = c.deps.Cache.Snapshot()
	return info
}

func (c *Client) publish(channel string, payload any) {
	c.deps.Publisher.Publish(channel, payload)
}

// Ping sends a liveness check to the server.
func (c *Client) Ping(ctx context.Context) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	if err := session.Ping(ctx, &sdkmcp.PingParams{}); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (c *Client) runPing(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := c.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Error("ping failed", "error", err)
				continue
			}
			c.logger.Debug("ping ok")
		}
	}
}
