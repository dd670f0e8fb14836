package state

import (
	"sort"
	"strings"
	"sync"
)

// Context is the shared key-value state for one workflow run. Values
// are arbitrary JSON-encodable structures addressed by dotted paths.
// Intermediate maps are created on write.
//
// A Context is never shared across runs; the engine creates one per
// run (or restores one from a checkpoint) and passes it explicitly to
// every step dispatch.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty Context.
func New() *Context {
	return &Context{values: make(map[string]any)}
}

// FromFlat builds a Context from a flat dotted-path map, the form used
// by checkpoint bundles.
func FromFlat(flat map[string]any) *Context {
	c := New()
	for path, v := range flat {
		c.Set(path, v)
	}
	return c
}

// Set writes a value at a dotted path, creating intermediate maps as
// needed. Writing through an existing non-map value replaces it.
func (c *Context) Set(path string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := strings.Split(path, ".")
	node := c.values
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

// Get resolves a dotted path. The second return value reports whether
// the path exists.
func (c *Context) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parts := strings.Split(path, ".")
	var node any = c.values
	for _, part := range parts {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// Flatten returns the context contents as a flat dotted-path map.
// Nested maps are expanded into dotted keys; slices and scalars are
// leaves. This is the stable form persisted in checkpoint bundles.
func (c *Context) Flatten() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	flat := make(map[string]any)
	flatten("", c.values, flat)
	return flat
}

func flatten(prefix string, node map[string]any, out map[string]any) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok && len(m) > 0 {
			flatten(path, m, out)
			continue
		}
		out[path] = v
	}
}

// Keys returns all flattened paths in sorted order.
func (c *Context) Keys() []string {
	flat := c.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
