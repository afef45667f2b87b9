package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/mcp-wrangler/internal/capability"
)

// discover fills the capability cache. Each category is fetched on its own; a
// failure leaves that category empty and does not stop the others.
func (c *Client) discover(ctx context.Context) {
	if err := c.RefreshTools(ctx); err != nil {
		c.logger.Error("tool discovery failed", "error", err)
		c.deps.Cache.SetTools(nil)
	}
	if err := c.RefreshPrompts(ctx); err != nil {
		c.logger.Error("prompt discovery failed", "error", err)
		c.deps.Cache.SetPrompts(nil)
	}
	resources, err := c.listResources(ctx)
	if err != nil {
		c.logger.Error("resource discovery failed", "error", err)
	}
	c.deps.Cache.SetResources(resources)
	if err := c.RefreshTemplates(ctx); err != nil {
		c.logger.Error("template discovery failed", "error", err)
		c.deps.Cache.SetTemplates(nil)
	}

	snap := c.deps.Cache.Snapshot()
	c.logger.Info("discovery complete",
		"tools", len(snap.Tools),
		"prompts", len(snap.Prompts),
		"resources", len(snap.Resources),
		"templates", len(snap.Templates),
	)
}

// RefreshTools re-lists tools from the server and replaces the cached list,
// keeping user enable choices.
func (c *Client) RefreshTools(ctx context.Context) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	var tools []capability.Tool
	params := &sdkmcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return fmt.Errorf("listing tools: %w", err)
		}
		for _, t := range res.Tools {
			tools = append(tools, capability.Tool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schemaMap(t.InputSchema),
			})
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}
	c.deps.Cache.SetTools(tools)
	return nil
}

// RefreshPrompts re-lists prompts from the server.
func (c *Client) RefreshPrompts(ctx context.Context) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	var prompts []capability.Prompt
	params := &sdkmcp.ListPromptsParams{}
	for {
		res, err := session.ListPrompts(ctx, params)
		if err != nil {
			return fmt.Errorf("listing prompts: %w", err)
		}
		for _, p := range res.Prompts {
			prompt := capability.Prompt{Name: p.Name, Description: p.Description}
			for _, a := range p.Arguments {
				prompt.Arguments = append(prompt.Arguments, capability.PromptArgument{
					Name:        a.Name,
					Description: a.Description,
					Required:    a.Required,
				})
			}
			prompts = append(prompts, prompt)
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}
	c.deps.Cache.SetPrompts(prompts)
	return nil
}

// RefreshTemplates re-lists resource templates from the server.
func (c *Client) RefreshTemplates(ctx context.Context) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}
	var templates []capability.Template
	params := &sdkmcp.ListResourceTemplatesParams{}
	for {
		res, err := session.ListResourceTemplates(ctx, params)
		if err != nil {
			return fmt.Errorf("listing resource templates: %w", err)
		}
		for _, t := range res.ResourceTemplates {
			templates = append(templates, capability.Template{
				URITemplate: t.URITemplate,
				Name:        t.Name,
				Description: t.Description,
				MIMEType:    t.MIMEType,
			})
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}
	c.deps.Cache.SetTemplates(templates)
	return nil
}

func (c *Client) listResources(ctx context.Context) ([]capability.Resource, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	var resources []capability.Resource
	params := &sdkmcp.ListResourcesParams{}
	for {
		res, err := session.ListResources(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing resources: %w", err)
		}
		for _, r := range res.Resources {
			resources = append(resources, capability.Resource{
				URI:         r.URI,
				Name:        r.Name,
				Description: r.Description,
				MIMEType:    r.MIMEType,
			})
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}
	return resources, nil
}

// schemaMap normalizes a tool input schema of any shape into a JSON object map.
func schemaMap(schema any) map[string]any {
	switch s := schema.(type) {
	case nil:
		return nil
	case map[string]any:
		return s
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
