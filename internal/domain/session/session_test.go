package session_test

import (
	"testing"

	"github.com/rpggio/mcp-wrangler/internal/domain/session"
	"github.com/stretchr/testify/require"
)

func TestSession_SamplingModelDefaultsToModel(t *testing.T) {
	s := session.New("gpt-a", "")
	require.Equal(t, "gpt-a", s.SamplingModel())

	s = session.New("gpt-a", "gpt-b")
	require.Equal(t, "gpt-b", s.SamplingModel())
}

func TestSession_ContinuationLifecycle(t *testing.T) {
	s := session.New("gpt-a", "")
	require.Empty(t, s.ContinuationToken())

	s.CompleteTurn("resp_1")
	s.CompleteTurn("resp_2")
	require.Equal(t, "resp_2", s.ContinuationToken())

	s.Reset()
	require.Empty(t, s.ContinuationToken())
	require.Equal(t, "gpt-a", s.Model())
}
