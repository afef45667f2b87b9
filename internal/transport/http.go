package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/mcp-wrangler/internal/capability"
	"github.com/rpggio/mcp-wrangler/internal/chat"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/domain/decision"
	"github.com/rpggio/mcp-wrangler/internal/domain/root"
	"github.com/rpggio/mcp-wrangler/internal/domain/session"
	"github.com/rpggio/mcp-wrangler/internal/domain/task"
	"github.com/rpggio/mcp-wrangler/internal/llm"
	"github.com/rpggio/mcp-wrangler/internal/mcp"
)

// Conversation runs chat turns.
type Conversation interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// Protocol is the protocol client surface the API exposes.
type Protocol interface {
	Info() mcp.Info
	RefreshTools(ctx context.Context) error
	GetPrompt(ctx context.Context, name string, args map[string]string) (string, error)
	ReadTemplate(ctx context.Context, uriTemplate string, args map[string]string) (string, error)
	Roots() []root.Root
	AddRoot(ctx context.Context, r root.Root) error
	RemoveRoot(ctx context.Context, name string) (root.Root, error)
}

// ResourceReader performs live resource reads through the cache.
type ResourceReader interface {
	Refresh(ctx context.Context, uri string) (string, error)
}

// Models lists models and proxies plain chat completions.
type Models interface {
	ListModels(ctx context.Context) ([]llm.Model, error)
	Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error)
}

// ActivityLog lists recorded host events.
type ActivityLog interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Deps are the components behind the HTTP API.
type Deps struct {
	Chat      Conversation
	Protocol  Protocol
	Resources ResourceReader
	Cache     *capability.Cache
	Tasks     *task.Registry
	Decisions *decision.Registry
	Session   *session.Session
	Models    Models
	Activity  ActivityLog
	Recorder  activity.Recorder
	// Updates serves the SSE update stream.
	Updates http.Handler
}

// Server wires HTTP handlers.
type Server struct {
	deps   Deps
	logger *slog.Logger
}

// NewServer creates an HTTP router with middleware.
func NewServer(deps Deps, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Recorder == nil {
		deps.Recorder = activity.Discard
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	srv := &Server{deps: deps, logger: logger}

	r.Get("/health", srv.handleHealth)
	r.Get("/config", srv.handleConfig)
	r.Get("/activity", srv.handleActivity)
	if deps.Updates != nil {
		r.Method(http.MethodGet, "/updates", deps.Updates)
	}

	r.Post("/chat/openai", srv.handleChat)
	r.Post("/chat/reset", srv.handleChatReset)
	r.Get("/models", srv.handleModels)
	r.Post("/openai/completion", srv.handleCompletion)

	r.Get("/mcp_info", srv.handleInfo)
	r.Get("/tools", srv.handleTools)
	r.Post("/tools/config", srv.handleToolConfig)
	r.Get("/resources/list", srv.handleResourceList)
	r.Post("/resources/read", srv.handleResourceRead)
	r.Get("/templates/list", srv.handleTemplateList)
	r.Post("/templates/read", srv.handleTemplateRead)
	r.Get("/prompts/list", srv.handlePromptList)
	r.Post("/prompts/get", srv.handlePromptGet)

	r.Get("/roots", srv.handleRoots)
	r.Post("/roots", srv.handleAddRoot)
	r.Delete("/roots", srv.handleRemoveRoot)
	r.Get("/tasks", srv.handleTasks)
	r.Post("/tasks/cancel", srv.handleTaskCancel)
	r.Post("/sampling/decision", srv.handleSamplingDecision)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"MCP_SERVER_URL": s.deps.Protocol.Info().Endpoint,
		"MODEL":          s.deps.Session.Model(),
		"SAMPLING_MODEL": s.deps.Session.SamplingModel(),
	})
}
