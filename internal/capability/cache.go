package capability

import "sync"

type entry struct {
	content string
	stale   bool
}

// Cache holds the capability snapshot, the resource content cache and the
// subscription set. All access goes through its methods.
type Cache struct {
	mu sync.RWMutex

	tools     []Tool
	choices   map[string]bool
	prompts   []Prompt
	resources []Resource
	templates []Template

	entries    map[string]*entry
	subscribed map[string]struct{}
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		choices:    make(map[string]bool),
		entries:    make(map[string]*entry),
		subscribed: make(map[string]struct{}),
	}
}

// SetTools replaces the tool list. Enabled flags follow the user's previous
// choice for the same name; new tools start enabled.
func (c *Cache) SetTools(tools []Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Tool, len(tools))
	for i, t := range tools {
		enabled, chosen := c.choices[t.Name]
		if !chosen {
			enabled = true
		}
		t.Enabled = enabled
		next[i] = t
	}
	c.tools = next
}

// SetToolEnabled records a user choice for name. It reports false if the tool
// is not in the current list.
func (c *Cache) SetToolEnabled(name string, enabled bool) (Tool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.tools {
		if c.tools[i].Name == name {
			c.tools[i].Enabled = enabled
			c.choices[name] = enabled
			return c.tools[i], true
		}
	}
	return Tool{}, false
}

// Tools returns the tool list.
func (c *Cache) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Tool(nil), c.tools...)
}

// EnabledTools returns the server tools the user has not disabled.
func (c *Cache) EnabledTools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Tool
	for _, t := range c.tools {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// SetPrompts replaces the prompt list.
func (c *Cache) SetPrompts(prompts []Prompt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append([]Prompt(nil), prompts...)
}

// Prompts returns a copy of the prompt list.
func (c *Cache) Prompts() []Prompt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Prompt(nil), c.prompts...)
}

// SetTemplates replaces the resource template list.
func (c *Cache) SetTemplates(templates []Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = append([]Template(nil), templates...)
}

// Templates returns a copy of the resource template list.
func (c *Cache) Templates() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Template(nil), c.templates...)
}

// Resources returns a copy of the resource list.
func (c *Cache) Resources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Resource(nil), c.resources...)
}

// SetResources replaces the resource list and returns the uris that were added
// and removed relative to the previous list. Cached content for removed uris is
// marked stale, not dropped.
func (c *Cache) SetResources(resources []Resource) (added, removed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := make(map[string]struct{}, len(c.resources))
	for _, r := range c.resources {
		prev[r.URI] = struct{}{}
	}
	next := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		next[r.URI] = struct{}{}
		if _, ok := prev[r.URI]; !ok {
			added = append(added, r.URI)
		}
	}
	for _, r := range c.resources {
		if _, ok := next[r.URI]; !ok {
			removed = append(removed, r.URI)
			if e, ok := c.entries[r.URI]; ok {
				e.stale = true
			}
		}
	}
	c.resources = append([]Resource(nil), resources...)
	return added, removed
}

// Snapshot returns a copy of the full capability set.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{
		Tools:     c.Tools(),
		Prompts:   c.Prompts(),
		Resources: c.Resources(),
		Templates: c.Templates(),
	}
}

// Lookup returns cached content only when the entry exists and is fresh.
func (c *Cache) Lookup(uri string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[uri]
	if !ok || e.stale {
		return "", false
	}
	return e.content, true
}

// Peek returns whatever content is cached for uri, fresh or stale.
func (c *Cache) Peek(uri string) (content string, stale bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[uri]
	if !ok {
		return "", false, false
	}
	return e.content, e.stale, true
}

// Store overwrites the entry for uri with fresh content.
func (c *Cache) Store(uri, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = &entry{content: content}
}

// Invalidate marks the entry for uri stale. It never removes the entry and is a
// no-op for uncached uris.
func (c *Cache) Invalidate(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[uri]; ok {
		e.stale = true
	}
}

// ClaimSubscription adds uri to the subscription set and reports whether it was
// absent. A claim holds for the life of the cache unless released.
func (c *Cache) ClaimSubscription(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribed[uri]; ok {
		return false
	}
	c.subscribed[uri] = struct{}{}
	return true
}

// ReleaseSubscription removes uri from the subscription set so that a later
// read claims it again.
func (c *Cache) ReleaseSubscription(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribed, uri)
}

// Subscribed reports whether uri is in the subscription set.
func (c *Cache) Subscribed(uri string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscribed[uri]
	return ok
}
