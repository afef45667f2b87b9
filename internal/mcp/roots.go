package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/mcp-wrangler/internal/broadcast"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/domain/root"
)

const methodListRoots = "roots/list"

// RootsChanged is published whenever the root list is mutated.
type RootsChanged struct {
	Roots   []root.Root `json:"roots"`
	Added   []root.Root `json:"added"`
	Removed []root.Root `json:"removed"`
}

// Roots returns the roots exposed to the server.
func (c *Client) Roots() []root.Root {
	return c.deps.Roots.List()
}

// answerRoots serves roots/list from the ordered root list. The SDK's own
// root set only drives list_changed notifications; it lists roots by uri.
func (c *Client) answerRoots(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
	return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		if method != methodListRoots {
			return next(ctx, method, req)
		}
		roots := c.deps.Roots.List()
		out := make([]*sdkmcp.Root, 0, len(roots))
		for _, r := range roots {
			out = append(out, &sdkmcp.Root{Name: r.Name, URI: r.URI})
		}
		return &sdkmcp.ListRootsResult{Roots: out}, nil
	}
}

// AddRoot exposes a new root to the server. The server is told the list changed.
func (c *Client) AddRoot(ctx context.Context, r root.Root) error {
	c.rootsMu.Lock()
	if err := c.deps.Roots.Add(r); err != nil {
		c.rootsMu.Unlock()
		return err
	}
	c.sdk.AddRoots(&sdkmcp.Root{Name: r.Name, URI: r.URI})
	c.rootsMu.Unlock()

	c.publish(broadcast.ChannelRootsListChanged, RootsChanged{
		Roots:   c.deps.Roots.List(),
		Added:   []root.Root{r},
		Removed: []root.Root{},
	})
	c.deps.Activity.Record(ctx, activity.TypeRootAdded, fmt.Sprintf("root %s added", r.Name), r)
	return nil
}

// RemoveRoot withdraws the root called name.
func (c *Client) RemoveRoot(ctx context.Context, name string) (root.Root, error) {
	c.rootsMu.Lock()
	removed, err := c.deps.Roots.Remove(name)
	if err != nil {
		c.rootsMu.Unlock()
		return root.Root{}, err
	}
	c.sdk.RemoveRoots(removed.URI)
	c.rootsMu.Unlock()

	c.publish(broadcast.ChannelRootsListChanged, RootsChanged{
		Roots:   c.deps.Roots.List(),
		Added:   []root.Root{},
		Removed: []root.Root{removed},
	})
	c.deps.Activity.Record(ctx, activity.TypeRootRemoved, fmt.Sprintf("root %s removed", name), removed)
	return removed, nil
}
