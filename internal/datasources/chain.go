// Package datasources implements the data resolution pipeline: namespaced
// remote and local sources, single-slot response caching, and sequential
// chained resolution with cross-source joins.
package datasources

import (
	"strings"
)

// Record is one parsed row. Keys are namespace-qualified output names,
// e.g. "assoc:position" or "assoc:pvalue|neglog10".
type Record map[string]interface{}

// Chain is the accumulating result threaded through sequential source
// resolution. Header carries cross-source metadata (e.g. the reference
// variant chosen for an LD query); Body is the row set visible to later
// sources and to renderers.
type Chain struct {
	Header map[string]interface{}
	Body   []Record
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{Header: make(map[string]interface{})}
}

// Clone returns a shallow copy of the chain with its own header map and
// body slice, so a cached chain can be extended without corrupting the
// cache slot.
func (c *Chain) Clone() *Chain {
	out := &Chain{
		Header: make(map[string]interface{}, len(c.Header)),
		Body:   make([]Record, len(c.Body)),
	}
	for k, v := range c.Header {
		out.Header[k] = v
	}
	copy(out.Body, c.Body)
	return out
}

// FindField returns the first body key whose unqualified, untransformed
// name equals field, e.g. FindField("position") matches "assoc:position".
// Returns "" when the body is empty or no key matches.
func (c *Chain) FindField(field string) string {
	if len(c.Body) == 0 {
		return ""
	}
	for key := range c.Body[0] {
		name := key
		if i := strings.Index(name, ":"); i >= 0 {
			name = name[i+1:]
		}
		if i := strings.Index(name, "|"); i >= 0 {
			name = name[:i]
		}
		if name == field {
			return key
		}
	}
	return ""
}

// Numeric reads a float64 from a record field, tolerating the integer and
// float32 types JSON decoding and columnar stores produce.
func Numeric(r Record, key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
