package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/mcp-wrangler/internal/broadcast"
	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
)

// ResourcesListChanged is published after the resource list is re-fetched.
type ResourcesListChanged struct {
	Resources []string `json:"resources"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
}

// enqueue hands a notification to the serial worker. Handlers run there, in
// arrival order, so they may issue requests without stalling the session's
// read loop.
func (c *Client) enqueue(name string, fn func(context.Context)) {
	job := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("notification handler panicked", "notification", name, "panic", fmt.Sprint(r))
			}
		}()
		fn(ctx)
	}
	select {
	case c.notifications <- job:
	case <-c.done:
	}
}

func (c *Client) runNotifications() {
	defer c.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	for {
		select {
		case <-c.done:
			return
		case job := <-c.notifications:
			job(ctx)
		}
	}
}

func (c *Client) handleProgress(_ context.Context, req *sdkmcp.ProgressNotificationClientRequest) {
	if req == nil || req.Params == nil {
		return
	}
	c.publish(broadcast.ChannelProgress, req.Params)
}

func (c *Client) handleResourceUpdated(_ context.Context, req *sdkmcp.ResourceUpdatedNotificationRequest) {
	if req == nil || req.Params == nil {
		return
	}
	params := req.Params
	c.enqueue("resources/updated", func(context.Context) {
		if params.URI != "" {
			c.logger.Debug("invalidating resource", "uri", params.URI)
			c.deps.Cache.Invalidate(params.URI)
		}
		c.publish(broadcast.ChannelResourceChange, params)
	})
}

func (c *Client) handleResourceListChanged(_ context.Context, _ *sdkmcp.ResourceListChangedRequest) {
	c.enqueue("resources/list_changed", c.reloadResources)
}

// reloadResources re-lists resources, diffs against the cached list and drops
// subscriptions for removed uris on a best-effort basis.
func (c *Client) reloadResources(ctx context.Context) {
	resources, err := c.listResources(ctx)
	if err != nil {
		c.logger.Error("reloading resource list", "error", err)
		return
	}
	added, removed := c.deps.Cache.SetResources(resources)

	if c.SupportsSubscribe() && len(removed) > 0 {
		if session, err := c.currentSession(); err == nil {
			for _, uri := range removed {
				if err := session.Unsubscribe(ctx, &sdkmcp.UnsubscribeParams{URI: uri}); err != nil {
					c.logger.Debug("unsubscribe failed", "uri", uri, "error", err)
				}
			}
		}
	}

	uris := make([]string, 0, len(resources))
	for _, r := range resources {
		uris = append(uris, r.URI)
	}
	event := ResourcesListChanged{Resources: uris, Added: nonNil(added), Removed: nonNil(removed)}
	c.publish(broadcast.ChannelResourcesListChanged, event)
	if len(added) > 0 || len(removed) > 0 {
		c.deps.Activity.Record(ctx, activity.TypeResourcesChanged,
			fmt.Sprintf("resource list changed: %d added, %d removed", len(added), len(removed)), event)
	}
}

// Prompt and tool list changes are only re-published. Consumers re-fetch when
// they need the new list.

func (c *Client) handlePromptListChanged(_ context.Context, req *sdkmcp.PromptListChangedRequest) {
	var payload any = map[string]any{}
	if req != nil && req.Params != nil {
		payload = req.Params
	}
	c.enqueue("prompts/list_changed", func(context.Context) {
		c.publish(broadcast.ChannelPromptsListChanged, payload)
	})
}

func (c *Client) handleToolListChanged(_ context.Context, req *sdkmcp.ToolListChangedRequest) {
	var payload any = map[string]any{}
	if req != nil && req.Params != nil {
		payload = req.Params
	}
	c.enqueue("tools/list_changed", func(context.Context) {
		c.publish(broadcast.ChannelToolsListChanged, payload)
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
