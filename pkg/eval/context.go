package eval

import "github.com/nexus-automation/nexus/pkg/value"

// Context is a layered, copy-on-write variable store. Lookups walk the
// layers from last-added to first, matching the precedence order in the
// data model: task vars shadow host vars, which shadow role vars, which
// shadow role defaults, which shadow play vars.
type Context struct {
	layers []map[string]value.Value
}

// NewContext returns an empty context with a single base layer.
func NewContext() *Context {
	return &Context{layers: []map[string]value.Value{{}}}
}

// Push returns a new Context with an additional layer on top, without
// mutating the receiver. Layers beneath are shared, not copied.
func (c *Context) Push(vars map[string]value.Value) *Context {
	nl := make([]map[string]value.Value, len(c.layers)+1)
	copy(nl, c.layers)
	if vars == nil {
		vars = map[string]value.Value{}
	}
	nl[len(nl)-1] = vars
	return &Context{layers: nl}
}

// Set returns a new Context with key bound in a fresh top layer.
func (c *Context) Set(key string, v value.Value) *Context {
	return c.Push(map[string]value.Value{key: v})
}

// Lookup resolves name by scanning layers from the top down.
func (c *Context) Lookup(name string) (value.Value, bool) {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if v, ok := c.layers[i][name]; ok {
			return v, true
		}
	}
	return value.Null(), false
}

// All flattens every layer into a single map, top layers winning.
func (c *Context) All() map[string]value.Value {
	out := map[string]value.Value{}
	for _, layer := range c.layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
