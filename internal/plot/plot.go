package plot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/fieldspec"
	"github.com/locusview/server/internal/layout"
)

// ErrStale marks a resolution that completed for a superseded request
// generation. Its results were discarded; the newer resolution's results
// stand. Callers treat it as a non-event.
var ErrStale = errors.New("plot: resolution superseded by a newer state change")

// Plot owns the shared state, the source collection, the ordered panels
// and the re-render lifecycle.
type Plot struct {
	mu sync.Mutex

	cfg        Config
	state      *State
	sources    *datasources.DataSources
	requester  *datasources.Requester
	transforms *fieldspec.Registry

	panels []*Panel
	index  map[string]*Panel

	box    layout.PlotBox
	events *emitter

	// generation is a monotonic counter stamped onto every resolution
	// pass; completions for a superseded generation are discarded rather
	// than overwriting newer rendered state.
	generation uint64
}

// New builds a plot from a config, validating the initial region and
// constructing every declared panel. Configuration errors abort
// construction.
func New(cfg Config, sources *datasources.DataSources, transforms *fieldspec.Registry) (*Plot, error) {
	applyDefaults(&cfg)
	if transforms == nil {
		transforms = fieldspec.NewRegistry()
	}

	p := &Plot{
		cfg:        cfg,
		sources:    sources,
		requester:  datasources.NewRequester(sources),
		transforms: transforms,
		index:      make(map[string]*Panel),
		events:     newEmitter(),
		box: layout.PlotBox{
			Width:       cfg.Width,
			Height:      cfg.Height,
			MinWidth:    cfg.MinWidth,
			MinHeight:   cfg.MinHeight,
			AspectRatio: cfg.AspectRatio,
		},
	}
	p.state = NewState(ValidateRegion(cfg.State, cfg.MinRegionScale, cfg.MaxRegionScale))

	for _, pc := range cfg.Panels {
		if _, err := p.addPanel(pc); err != nil {
			return nil, err
		}
	}
	p.solveLayout()
	return p, nil
}

// State returns the plot's shared state object.
func (p *Plot) State() *State { return p.state }

// Generation returns the current resolution generation. It changes on
// every state update, so callers can use it in cache keys to invalidate
// rendered artifacts.
func (p *Plot) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Config returns the plot configuration.
func (p *Plot) Config() Config { return p.cfg }

// Sources returns the plot's source collection.
func (p *Plot) Sources() *datasources.DataSources { return p.sources }

// Box returns the solved plot geometry.
func (p *Plot) Box() layout.PlotBox {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box
}

// Panels returns the panels in stacking order.
func (p *Plot) Panels() []*Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Panel, len(p.panels))
	copy(out, p.panels)
	return out
}

// Panel returns a panel by id, or nil.
func (p *Plot) Panel(id string) *Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index[id]
}

// On subscribes to plot-level events; panel events bubble up here.
func (p *Plot) On(name string, fn Listener) { p.events.On(name, fn) }

// AddPanel creates a panel from its config, appends it to the stacking
// order and re-solves the layout.
func (p *Plot) AddPanel(cfg PanelConfig) (*Panel, error) {
	p.mu.Lock()
	panel, err := p.addPanel(cfg)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.solveLayout()
	p.mu.Unlock()
	p.events.Emit(Event{Name: EventLayoutChanged})
	return panel, nil
}

func (p *Plot) addPanel(cfg PanelConfig) (*Panel, error) {
	if _, dup := p.index[cfg.ID]; dup {
		return nil, fmt.Errorf("duplicate panel id %q", cfg.ID)
	}
	panel, err := newPanel(p, cfg)
	if err != nil {
		return nil, err
	}
	p.panels = append(p.panels, panel)
	p.index[cfg.ID] = panel
	return panel, nil
}

// RemovePanel destroys a panel, deleting its state sub-namespace, and
// re-solves the layout.
func (p *Plot) RemovePanel(id string) {
	p.mu.Lock()
	panel, ok := p.index[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.index, id)
	for i, pn := range p.panels {
		if pn == panel {
			p.panels = append(p.panels[:i], p.panels[i+1:]...)
			break
		}
	}
	p.state.DropNamespace(id, "")
	p.solveLayout()
	p.mu.Unlock()
	p.events.Emit(Event{Name: EventLayoutChanged})
}

// solveLayout runs one layout pass over the current panels.
func (p *Plot) solveLayout() {
	boxes := make([]*layout.PanelBox, len(p.panels))
	for i, panel := range p.panels {
		panel.box.ID = panel.cfg.ID
		panel.box.ProportionalHeight = panel.cfg.ProportionalHeight
		panel.box.ProportionalWidth = panel.cfg.ProportionalWidth
		panel.box.MinWidth = panel.cfg.MinWidth
		panel.box.MinHeight = panel.cfg.MinHeight
		boxes[i] = &panel.box
	}
	layout.Solve(&p.box, boxes)
	for _, panel := range p.panels {
		panel.computeScales()
	}
}

// Resize re-solves the layout for a new container size (the responsive
// entry point) and emits layout_changed.
func (p *Plot) Resize(width, height float64) {
	p.mu.Lock()
	p.box.Width = width
	p.box.Height = height
	p.solveLayout()
	p.mu.Unlock()
	p.events.Emit(Event{Name: EventLayoutChanged})
}

// StateUpdate is a partial state application: nil fields are untouched.
type StateUpdate struct {
	Region *Region           `json:"region,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// ApplyState merges a partial state update, validates the region and
// refetches every panel. It returns after all panels re-rendered or with
// the first resolution error; on error previously rendered chains are
// left intact. A resolution superseded by a newer ApplyState returns
// ErrStale and its results are dropped.
func (p *Plot) ApplyState(ctx context.Context, update StateUpdate) error {
	p.mu.Lock()
	if update.Region != nil {
		p.state.SetRegion(ValidateRegion(*update.Region, p.cfg.MinRegionScale, p.cfg.MaxRegionScale))
	}
	for k, v := range update.Params {
		p.state.SetParam(k, v)
	}
	p.generation++
	gen := p.generation
	panels := append([]*Panel(nil), p.panels...)
	p.mu.Unlock()

	return p.refresh(ctx, gen, panels)
}

// Refresh refetches every panel against the current state.
func (p *Plot) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	panels := append([]*Panel(nil), p.panels...)
	p.mu.Unlock()
	return p.refresh(ctx, gen, panels)
}

// commitRegion is the landing point for horizontal interaction commits:
// validate and store the new region, then run exactly one resolution for
// the origin panel and each x-linked sibling.
func (p *Plot) commitRegion(ctx context.Context, region Region, origin *Panel) error {
	p.mu.Lock()
	p.state.SetRegion(ValidateRegion(region, p.cfg.MinRegionScale, p.cfg.MaxRegionScale))
	p.generation++
	gen := p.generation

	targets := make([]*Panel, 0, len(p.panels))
	for _, panel := range p.panels {
		if panel == origin || (origin.cfg.Interaction.XLinked && panel.cfg.Interaction.XLinked) {
			targets = append(targets, panel)
		}
	}
	p.mu.Unlock()

	return p.refresh(ctx, gen, targets)
}

// queryState snapshots the shared state for source resolution.
func (p *Plot) queryState() datasources.QueryState {
	region := p.state.Region()
	return datasources.QueryState{
		Chrom:  region.Chrom,
		Start:  region.Start,
		End:    region.End,
		Params: p.state.Params(),
	}
}

// refresh runs one resolution pass per panel, assigning chains and
// recomputing scales only if this generation is still current once every
// panel resolved. Any failure rejects the whole pass and keeps prior
// rendered state.
func (p *Plot) refresh(ctx context.Context, gen uint64, panels []*Panel) error {
	qs := p.queryState()

	for _, panel := range panels {
		p.events.Emit(Event{Name: EventDataRequested, PanelID: panel.cfg.ID})
	}

	resolved := make(map[*Panel]*datasources.Chain, len(panels))
	for _, panel := range panels {
		specs := panelFieldSpecs(panel)
		if len(specs) == 0 {
			continue
		}
		chain, err := p.requester.Resolve(ctx, qs, specs)
		if err != nil {
			return fmt.Errorf("panel %q: %w", panel.cfg.ID, err)
		}
		resolved[panel] = chain
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return ErrStale
	}
	for _, panel := range panels {
		if chain, ok := resolved[panel]; ok {
			for _, l := range panel.layers {
				l.setChain(chain)
			}
		}
		panel.computeScales()
	}
	p.mu.Unlock()

	// Listeners run outside the lock so they may call plot accessors.
	for _, panel := range panels {
		p.events.Emit(Event{Name: EventDataRendered, PanelID: panel.cfg.ID})
	}
	return nil
}

// panelFieldSpecs unions the field specs of every layer in a panel,
// deduplicated by output name, preserving first appearance order.
func panelFieldSpecs(panel *Panel) []fieldspec.FieldSpec {
	var out []fieldspec.FieldSpec
	seen := make(map[string]struct{})
	for _, l := range panel.layers {
		for _, spec := range l.specs {
			name := spec.OutputName()
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, spec)
		}
	}
	return out
}
