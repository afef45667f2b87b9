package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

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

type conversationStub struct {
	handleFn func(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

func (s *conversationStub) Handle(ctx context.Context, req chat.Request) (*chat.Reply, error) {
	return s.handleFn(ctx, req)
}

type protocolStub struct {
	roots          *root.Store
	refreshToolsFn func(ctx context.Context) error
	getPromptFn    func(ctx context.Context, name string, args map[string]string) (string, error)
	readTemplateFn func(ctx context.Context, uri string, args map[string]string) (string, error)
}

func (s *protocolStub) Info() mcp.Info {
	return mcp.Info{Endpoint: "http://mcp.test", State: mcp.StateConnected}
}

func (s *protocolStub) RefreshTools(ctx context.Context) error { return s.refreshToolsFn(ctx) }

func (s *protocolStub) GetPrompt(ctx context.Context, name string, args map[string]string) (string, error) {
	return s.getPromptFn(ctx, name, args)
}

func (s *protocolStub) ReadTemplate(ctx context.Context, uri string, args map[string]string) (string, error) {
	return s.readTemplateFn(ctx, uri, args)
}

func (s *protocolStub) Roots() []root.Root { return s.roots.List() }

func (s *protocolStub) AddRoot(_ context.Context, r root.Root) error { return s.roots.Add(r) }

func (s *protocolStub) RemoveRoot(_ context.Context, name string) (root.Root, error) {
	return s.roots.Remove(name)
}

type resourcesStub struct {
	refreshFn func(ctx context.Context, uri string) (string, error)
}

func (s *resourcesStub) Refresh(ctx context.Context, uri string) (string, error) {
	return s.refreshFn(ctx, uri)
}

type modelsStub struct {
	listFn     func(ctx context.Context) ([]llm.Model, error)
	completeFn func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error)
}

func (s *modelsStub) ListModels(ctx context.Context) ([]llm.Model, error) { return s.listFn(ctx) }

func (s *modelsStub) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	return s.completeFn(ctx, req)
}

type activityStub struct {
	listFn func(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

func (s *activityStub) GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	return s.listFn(ctx, opts)
}

type fixture struct {
	server    *httptest.Server
	deps      Deps
	chat      *conversationStub
	protocol  *protocolStub
	resources *resourcesStub
	models    *modelsStub
	activity  *activityStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		chat:      &conversationStub{},
		protocol:  &protocolStub{roots: root.NewStore()},
		resources: &resourcesStub{},
		models:    &modelsStub{},
		activity:  &activityStub{},
	}
	f.deps = Deps{
		Chat:      f.chat,
		Protocol:  f.protocol,
		Resources: f.resources,
		Cache:     capability.NewCache(),
		Tasks:     task.NewRegistry(nil),
		Decisions: decision.NewRegistry(),
		Session:   session.New("gpt-test", "sampler"),
		Models:    f.models,
		Activity:  f.activity,
		Updates: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(": ok\n\n"))
		}),
	}
	f.server = httptest.NewServer(NewServer(f.deps, nil))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHTTPServer_Health(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_Updates(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/updates")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
}

func TestHTTPServer_Config(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{
		"MCP_SERVER_URL": "http://mcp.test",
		"MODEL":          "gpt-test",
		"SAMPLING_MODEL": "sampler",
	}, body)
}

func TestHTTPServer_ChatContinuation(t *testing.T) {
	f := newFixture(t)
	var got []chat.Request
	f.chat.handleFn = func(_ context.Context, req chat.Request) (*chat.Reply, error) {
		got = append(got, req)
		return &chat.Reply{Reply: "hi", ToolCalls: []chat.ToolCall{}, ResponseID: "resp-" + req.Message}, nil
	}

	status, body := f.do(t, http.MethodPost, "/chat/openai", map[string]any{
		"message":           "one",
		"selectedResources": []map[string]any{{"uri": "file://a.txt", "useCached": true}},
		"tool_required":     true,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hi", body["reply"])
	require.Equal(t, "resp-one", body["response_id"])
	require.Equal(t, []any{}, body["toolCalls"])

	require.Equal(t, "gpt-test", got[0].Model)
	require.True(t, got[0].ToolRequired)
	require.Equal(t, []chat.ResourceSelection{{URI: "file://a.txt", UseCached: true}}, got[0].Resources)
	require.Empty(t, got[0].PreviousResponseID)

	status, _ = f.do(t, http.MethodPost, "/chat/openai", map[string]any{"message": "two", "conversation": true, "model": "other"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "resp-one", got[1].PreviousResponseID)
	require.Equal(t, "other", got[1].Model)

	status, _ = f.do(t, http.MethodPost, "/chat/reset", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, f.deps.Session.ContinuationToken())

	status, _ = f.do(t, http.MethodPost, "/chat/openai", map[string]any{"message": "three", "conversation": true})
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, got[2].PreviousResponseID)
}

func TestHTTPServer_ChatFailure(t *testing.T) {
	f := newFixture(t)
	f.chat.handleFn = func(context.Context, chat.Request) (*chat.Reply, error) {
		return nil, errors.New("completion service down")
	}

	status, body := f.do(t, http.MethodPost, "/chat/openai", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "completion service down", body["error"])

	status, _ = f.do(t, http.MethodPost, "/chat/openai", map[string]any{})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHTTPServer_Tools(t *testing.T) {
	f := newFixture(t)
	f.deps.Cache.SetTools([]capability.Tool{{Name: "search"}})
	refreshed := false
	f.protocol.refreshToolsFn = func(context.Context) error {
		refreshed = true
		return nil
	}

	status, body := f.do(t, http.MethodPost, "/tools/config", map[string]any{"name": "search", "enabled": false})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["tool"].(map[string]any)["enabled"])
	require.Empty(t, f.deps.Cache.EnabledTools())

	status, _ = f.do(t, http.MethodPost, "/tools/config", map[string]any{"name": "missing", "enabled": true})
	require.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodGet, "/tools?refresh=1", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, refreshed)
	require.Len(t, body["tools"], 1)
}

func TestHTTPServer_ReadEndpoints(t *testing.T) {
	f := newFixture(t)
	f.resources.refreshFn = func(_ context.Context, uri string) (string, error) {
		if uri == "file://bad" {
			return "", errors.New("read failed")
		}
		return "DATA", nil
	}
	f.protocol.readTemplateFn = func(_ context.Context, uri string, args map[string]string) (string, error) {
		return mcp.ExpandTemplate(uri, args), nil
	}
	f.protocol.getPromptFn = func(_ context.Context, name string, args map[string]string) (string, error) {
		return "hello " + args["who"], nil
	}

	status, body := f.do(t, http.MethodPost, "/resources/read", map[string]any{"uri": "file://a.txt"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "DATA", body["content"])

	status, _ = f.do(t, http.MethodPost, "/resources/read", map[string]any{"uri": "file://bad"})
	require.Equal(t, http.StatusInternalServerError, status)

	status, body = f.do(t, http.MethodPost, "/templates/read", map[string]any{"uri": "notes://{name}", "args": map[string]string{"name": "x"}})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "notes://x", body["content"])

	status, body = f.do(t, http.MethodPost, "/prompts/get", map[string]any{"name": "greet", "args": map[string]string{"who": "Ada"}})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hello Ada", body["prompt"])

	status, body = f.do(t, http.MethodGet, "/mcp_info", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "connected", body["state"])
}

func TestHTTPServer_Roots(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/roots", map[string]any{"name": "src", "uri": "file:///src"})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["roots"], 1)

	status, _ = f.do(t, http.MethodPost, "/roots", map[string]any{"name": "src", "uri": "file:///other"})
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = f.do(t, http.MethodPost, "/roots", map[string]any{"name": "nouri"})
	require.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodDelete, "/roots", map[string]any{"name": "src"})
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["roots"])

	status, _ = f.do(t, http.MethodDelete, "/roots", map[string]any{"name": "src"})
	require.Equal(t, http.StatusNotFound, status)
}

func TestHTTPServer_TaskCancel(t *testing.T) {
	f := newFixture(t)
	var reason string
	require.NoError(t, f.deps.Tasks.Create("tok", "tool slow", func(r string) { reason = r }))

	status, body := f.do(t, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["tasks"], 1)

	status, _ = f.do(t, http.MethodPost, "/tasks/cancel", map[string]any{"token": "tok", "reason": "stop"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "stop", reason)

	status, _ = f.do(t, http.MethodPost, "/tasks/cancel", map[string]any{"token": "tok"})
	require.Equal(t, http.StatusNotFound, status)
}

func TestHTTPServer_SamplingDecision(t *testing.T) {
	f := newFixture(t)
	pending, err := f.deps.Decisions.Register("r1")
	require.NoError(t, err)

	status, _ := f.do(t, http.MethodPost, "/sampling/decision", map[string]any{"id": "r1", "approved": true})
	require.Equal(t, http.StatusOK, status)
	approved, err := pending.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, approved)

	status, body := f.do(t, http.MethodPost, "/sampling/decision", map[string]any{"id": "r1", "approved": true})
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body["error"], "r1")
}

func TestHTTPServer_ModelsAndCompletion(t *testing.T) {
	f := newFixture(t)
	f.models.listFn = func(context.Context) ([]llm.Model, error) {
		return []llm.Model{{ID: "gpt-test", Object: "model"}}, nil
	}
	var got llm.ChatRequest
	f.models.completeFn = func(_ context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
		got = req
		return &llm.ChatResult{Text: "pong"}, nil
	}

	status, body := f.do(t, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["models"], 1)

	status, body = f.do(t, http.MethodPost, "/openai/completion", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "ping"}},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"role": "assistant", "content": "pong"}, body["data"])
	require.Equal(t, defaultCompletionTokens, got.MaxTokens)
	require.Equal(t, "gpt-test", got.Model)
}

func TestHTTPServer_Activity(t *testing.T) {
	f := newFixture(t)
	var got activity.ListActivityOptions
	f.activity.listFn = func(_ context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
		got = opts
		return []activity.ActivityEntry{{ID: 1, ActivityType: activity.TypeToolCalled, Summary: "tool search called"}}, nil
	}

	status, body := f.do(t, http.MethodGet, "/activity?limit=5&type=tool_called", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["activity"], 1)
	require.Equal(t, 5, got.Limit)
	require.Equal(t, activity.TypeToolCalled, *got.ActivityType)

	status, _ = f.do(t, http.MethodGet, "/activity?type=bogus", nil)
	require.Equal(t, http.StatusBadRequest, status)
}
