package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/mcp-wrangler/internal/broadcast"
	"github.com/rpggio/mcp-wrangler/internal/domain/decision"
	"github.com/rpggio/mcp-wrangler/internal/llm"
	"github.com/rpggio/mcp-wrangler/internal/testserver"
)

type completerStub struct {
	completeFn func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error)
}

func (s *completerStub) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	return s.completeFn(ctx, req)
}

func samplingParams() *sdkmcp.CreateMessageParams {
	return &sdkmcp.CreateMessageParams{
		SystemPrompt: "be brief",
		MaxTokens:    50,
		Temperature:  0.7,
		Messages: []*sdkmcp.SamplingMessage{
			{Role: "user", Content: &sdkmcp.TextContent{Text: "hi"}},
		},
	}
}

func awaitSamplingID(t *testing.T, events <-chan broadcast.Event) string {
	t.Helper()
	data := waitEvent(t, events, broadcast.ChannelSamplingRequest, nil)
	var req struct {
		ID       string `json:"id"`
		Messages []any  `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &req))
	require.NotEmpty(t, req.ID)
	require.Len(t, req.Messages, 1)
	return req.ID
}

func TestSampling_Approved(t *testing.T) {
	var got llm.ChatRequest
	sampler := &completerStub{
		completeFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
			got = req
			return &llm.ChatResult{Model: "gpt-test", Text: "hello", FinishReason: "length"}, nil
		},
	}
	decisions := decision.NewRegistry()
	ts := testserver.New(t)

	b := broadcast.New(nil)
	events, cancel := b.Subscribe()
	defer cancel()
	c := New(Options{
		Transports:    func(TransportKind) sdkmcp.Transport { return ts.Pipe() },
		SamplingModel: "sampling-model",
	}, Deps{Decisions: decisions, Sampler: sampler, Publisher: b}, nil)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Connect(context.Background()))

	type outcome struct {
		res *sdkmcp.CreateMessageResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := ts.Session().CreateMessage(context.Background(), samplingParams())
		done <- outcome{res, err}
	}()

	id := awaitSamplingID(t, events)
	require.Equal(t, []string{id}, decisions.PendingIDs())
	require.NoError(t, decisions.Resolve(id, true))

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.Equal(t, "gpt-test", out.res.Model)
		require.Equal(t, StopReasonMaxTokens, out.res.StopReason)
		text, ok := out.res.Content.(*sdkmcp.TextContent)
		require.True(t, ok)
		require.Equal(t, "hello", text.Text)
	case <-time.After(waitTimeout):
		t.Fatal("sampling did not complete")
	}

	require.Equal(t, "sampling-model", got.Model)
	require.Equal(t, "be brief", got.System)
	require.Equal(t, 50, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	require.InDelta(t, 0.7, *got.Temperature, 1e-9)
	require.Equal(t, []llm.ChatMessage{{Role: "user", Content: "hi"}}, got.Messages)

	waitEvent(t, events, broadcast.ChannelSamplingResponse, nil)
	require.Empty(t, decisions.PendingIDs())
}

func TestSampling_Denied(t *testing.T) {
	called := false
	sampler := &completerStub{
		completeFn: func(context.Context, llm.ChatRequest) (*llm.ChatResult, error) {
			called = true
			return &llm.ChatResult{}, nil
		},
	}
	decisions := decision.NewRegistry()
	ts := testserver.New(t)
	_, b := connectClient(t, ts, Deps{Decisions: decisions, Sampler: sampler})
	events, cancel := b.Subscribe()
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := ts.Session().CreateMessage(context.Background(), samplingParams())
		done <- err
	}()

	id := awaitSamplingID(t, events)
	require.NoError(t, decisions.Resolve(id, false))

	select {
	case err := <-done:
		require.ErrorContains(t, err, ErrSamplingRejected.Error())
	case <-time.After(waitTimeout):
		t.Fatal("sampling did not complete")
	}
	require.False(t, called)
}

func TestSample_TimesOut(t *testing.T) {
	decisions := decision.NewRegistry()
	c := New(Options{SamplingTimeout: 20 * time.Millisecond}, Deps{Decisions: decisions}, nil)
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Sample(context.Background(), samplingParams())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, decisions.PendingIDs())
}

func TestStopReason(t *testing.T) {
	require.Equal(t, StopReasonStopSequence, stopReason("stop"))
	require.Equal(t, StopReasonMaxTokens, stopReason("length"))
	require.Equal(t, StopReasonEndTurn, stopReason("tool_calls"))
	require.Equal(t, StopReasonEndTurn, stopReason(""))
}
