// Package plot composes panels, data layers and shared state into one
// interactive region plot.
package plot

import (
	"fmt"
	"strings"
	"sync"
)

// Region is the visible genomic window.
type Region struct {
	Chrom string `yaml:"chr" json:"chr"`
	Start int64  `yaml:"start" json:"start"`
	End   int64  `yaml:"end" json:"end"`
}

// Width returns the region span in bases.
func (r Region) Width() int64 { return r.End - r.Start }

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// State is the single source of truth for the current region plus
// per-panel/per-layer element sets (selection, highlight). One shared
// mutable instance lives for the plot's lifetime; panels and layers hold
// references into it, never copies.
type State struct {
	mu sync.Mutex

	region Region
	params map[string]string

	// sets holds ordered element-id sets keyed by
	// "panelID.layerID.kind", e.g. "assoc.scatter.selected".
	sets map[string]*orderedSet
}

// NewState creates state with an initial, unvalidated region.
func NewState(region Region) *State {
	return &State{
		region: region,
		params: make(map[string]string),
		sets:   make(map[string]*orderedSet),
	}
}

// Region returns the current region.
func (s *State) Region() Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region
}

// SetRegion overwrites the region. Callers are expected to validate
// through ValidateRegion first.
func (s *State) SetRegion(r Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.region = r
}

// Param returns a free-form state parameter.
func (s *State) Param(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[key]
}

// SetParam sets a free-form state parameter; empty value deletes it.
func (s *State) SetParam(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.params, key)
		return
	}
	s.params[key] = value
}

// Params returns a copy of all free-form parameters.
func (s *State) Params() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

func setKey(panelID, layerID, kind string) string {
	return panelID + "." + layerID + "." + kind
}

// AddToSet appends an element id to an ordered per-layer set if absent.
func (s *State) AddToSet(panelID, layerID, kind, element string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := setKey(panelID, layerID, kind)
	set, ok := s.sets[key]
	if !ok {
		set = newOrderedSet()
		s.sets[key] = set
	}
	set.add(element)
}

// RemoveFromSet drops an element id from a per-layer set.
func (s *State) RemoveFromSet(panelID, layerID, kind, element string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[setKey(panelID, layerID, kind)]; ok {
		set.remove(element)
	}
}

// Set returns the ordered contents of a per-layer set.
func (s *State) Set(panelID, layerID, kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[setKey(panelID, layerID, kind)]; ok {
		return set.items()
	}
	return nil
}

// DropNamespace deletes every set under a panel (layerID "") or a
// specific panel.layer prefix. Called when panels and layers are removed.
func (s *State) DropNamespace(panelID, layerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := panelID + "."
	if layerID != "" {
		prefix = panelID + "." + layerID + "."
	}
	for key := range s.sets {
		if strings.HasPrefix(key, prefix) {
			delete(s.sets, key)
		}
	}
}

// ValidateRegion repairs a user-supplied region in place of rejecting it:
// inverted bounds are swapped, non-positive coordinates floored at 1, and
// the width clamped to [minScale, maxScale] centered on the original
// midpoint. Malformed state is never fatal.
func ValidateRegion(r Region, minScale, maxScale int64) Region {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	if r.Start < 1 {
		r.Start = 1
	}
	if r.End < 1 {
		r.End = 1
	}

	width := r.End - r.Start
	clampTo := int64(0)
	if minScale > 0 && width < minScale {
		clampTo = minScale
	}
	if maxScale > 0 && width > maxScale {
		clampTo = maxScale
	}
	if clampTo > 0 {
		mid := r.Start + width/2
		half := clampTo / 2
		r.Start = mid - half
		r.End = mid + (clampTo - half)
		if r.Start < 1 {
			r.End += 1 - r.Start
			r.Start = 1
		}
	}
	return r
}

// orderedSet preserves insertion order with O(1) membership.
type orderedSet struct {
	order []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (o *orderedSet) add(v string) {
	if _, ok := o.seen[v]; ok {
		return
	}
	o.seen[v] = struct{}{}
	o.order = append(o.order, v)
}

func (o *orderedSet) remove(v string) {
	if _, ok := o.seen[v]; !ok {
		return
	}
	delete(o.seen, v)
	for i, s := range o.order {
		if s == v {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *orderedSet) items() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}
