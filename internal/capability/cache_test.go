package capability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/mcp-wrangler/internal/capability"
	"github.com/stretchr/testify/require"
)

type sourceStub struct {
	readFn      func(context.Context, string) (string, error)
	subscribeFn func(string) error
	subscribe   bool
	reads       map[string]int
	subscribes  map[string]int
}

func newSourceStub(subscribe bool, readFn func(context.Context, string) (string, error)) *sourceStub {
	return &sourceStub{
		readFn:     readFn,
		subscribe:  subscribe,
		reads:      map[string]int{},
		subscribes: map[string]int{},
	}
}

func (s *sourceStub) ReadResource(ctx context.Context, uri string) (string, error) {
	s.reads[uri]++
	return s.readFn(ctx, uri)
}

func (s *sourceStub) Subscribe(_ context.Context, uri string) error {
	s.subscribes[uri]++
	if s.subscribeFn != nil {
		return s.subscribeFn(uri)
	}
	return nil
}

func (s *sourceStub) SupportsSubscribe() bool { return s.subscribe }

func TestResources_ReadCachedAvoidsNetworkWhenFresh(t *testing.T) {
	ctx := context.Background()
	cache := capability.NewCache()
	version := 0
	src := newSourceStub(false, func(_ context.Context, uri string) (string, error) {
		version++
		return uri + "#" + string(rune('0'+version)), nil
	})
	res := capability.NewResources(cache, src, nil)

	first, err := res.ReadCached(ctx, "file://a")
	require.NoError(t, err)
	require.Equal(t, "file://a#1", first)

	again, err := res.ReadCached(ctx, "file://a")
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Equal(t, 1, src.reads["file://a"])
}

func TestResources_InvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	cache := capability.NewCache()
	content := "old"
	src := newSourceStub(false, func(context.Context, string) (string, error) { return content, nil })
	res := capability.NewResources(cache, src, nil)

	_, err := res.ReadCached(ctx, "U")
	require.NoError(t, err)

	content = "new"
	res.Invalidate("U")

	stale, isStale, ok := cache.Peek("U")
	require.True(t, ok)
	require.True(t, isStale)
	require.Equal(t, "old", stale)

	got, err := res.ReadCached(ctx, "U")
	require.NoError(t, err)
	require.Equal(t, "new", got)
	require.Equal(t, 2, src.reads["U"])

	_, isStale, _ = cache.Peek("U")
	require.False(t, isStale)
}

func TestCache_InvalidateIsolatedAndIdempotent(t *testing.T) {
	cache := capability.NewCache()
	cache.Store("a", "A")
	cache.Store("b", "B")

	cache.Invalidate("a")
	cache.Invalidate("a")
	cache.Invalidate("missing")

	_, ok := cache.Lookup("a")
	require.False(t, ok)
	b, ok := cache.Lookup("b")
	require.True(t, ok)
	require.Equal(t, "B", b)

	_, _, ok = cache.Peek("missing")
	require.False(t, ok)
}

func TestResources_SubscribeOnceWhenSupported(t *testing.T) {
	ctx := context.Background()
	cache := capability.NewCache()
	src := newSourceStub(true, func(context.Context, string) (string, error) { return "x", nil })
	res := capability.NewResources(cache, src, nil)

	for i := 0; i < 3; i++ {
		_, err := res.Refresh(ctx, "file://a")
		require.NoError(t, err)
	}
	require.Equal(t, 3, src.reads["file://a"])
	require.Equal(t, 1, src.subscribes["file://a"])
	require.True(t, cache.Subscribed("file://a"))
}

func TestResources_NoSubscribeWithoutCapability(t *testing.T) {
	ctx := context.Background()
	cache := capability.NewCache()
	src := newSourceStub(false, func(context.Context, string) (string, error) { return "x", nil })
	res := capability.NewResources(cache, src, nil)

	_, err := res.Refresh(ctx, "file://a")
	require.NoError(t, err)
	require.Zero(t, src.subscribes["file://a"])
	require.False(t, cache.Subscribed("file://a"))
}

func TestResources_ReadFailureLeavesEntryUntouched(t *testing.T) {
	ctx := context.Background()
	cache := capability.NewCache()
	cache.Store("U", "kept")
	cache.Invalidate("U")

	src := newSourceStub(true, func(context.Context, string) (string, error) { return "", errors.New("offline") })
	res := capability.NewResources(cache, src, nil)

	_, err := res.ReadCached(ctx, "U")
	require.Error(t, err)

	content, stale, ok := cache.Peek("U")
	require.True(t, ok)
	require.True(t, stale)
	require.Equal(t, "kept", content)
	require.Zero(t, src.subscribes["U"])
}

func TestCache_ToolEnabledFlagSurvivesReplacement(t *testing.T) {
	cache := capability.NewCache()
	cache.SetTools([]capability.Tool{{Name: "search"}, {Name: "fetch"}})

	_, ok := cache.SetToolEnabled("search", false)
	require.True(t, ok)
	_, ok = cache.SetToolEnabled("unknown", false)
	require.False(t, ok)

	cache.SetTools([]capability.Tool{{Name: "fetch"}, {Name: "search"}, {Name: "new"}})

	tools := cache.Tools()
	require.Len(t, tools, 3)
	require.True(t, tools[0].Enabled)
	require.False(t, tools[1].Enabled)
	require.True(t, tools[2].Enabled)

	enabled := cache.EnabledTools()
	require.Len(t, enabled, 2)
	require.Equal(t, "fetch", enabled[0].Name)
	require.Equal(t, "new", enabled[1].Name)
}

func TestCache_SetResourcesDiffAndStaleness(t *testing.T) {
	cache := capability.NewCache()
	cache.SetResources([]capability.Resource{{URI: "a"}, {URI: "b"}})
	cache.Store("b", "B")

	added, removed := cache.SetResources([]capability.Resource{{URI: "a"}, {URI: "c"}})
	require.Equal(t, []string{"c"}, added)
	require.Equal(t, []string{"b"}, removed)

	content, stale, ok := cache.Peek("b")
	require.True(t, ok)
	require.True(t, stale)
	require.Equal(t, "B", content)
	require.Len(t, cache.Resources(), 2)
}

func TestResources_FailedSubscribeIsRetried(t *testing.T) {
	cache := capability.NewCache()
	source := newSourceStub(true, func(context.Context, string) (string, error) { return "DATA", nil })
	calls := 0
	source.subscribeFn = func(string) error {
		calls++
		if calls == 1 {
			return errors.New("subscribe refused")
		}
		return nil
	}
	resources := capability.NewResources(cache, source, nil)
	ctx := context.Background()

	_, err := resources.Refresh(ctx, "U")
	require.NoError(t, err)
	require.False(t, cache.Subscribed("U"))

	_, err = resources.Refresh(ctx, "U")
	require.NoError(t, err)
	require.True(t, cache.Subscribed("U"))
	require.Equal(t, 2, source.subscribes["U"])

	_, err = resources.Refresh(ctx, "U")
	require.NoError(t, err)
	require.Equal(t, 2, source.subscribes["U"])
}
