package plot

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/locusview/server/internal/interaction"
	"github.com/locusview/server/internal/layout"
	"github.com/locusview/server/internal/scale"
)

// Panel is a rectangular sub-region of the plot with its own axes,
// z-ordered data layers and gesture machine.
type Panel struct {
	cfg    PanelConfig
	plot   *Plot
	layers []*DataLayer

	machine *interaction.Machine
	events  *emitter

	box     layout.PanelBox
	extents map[interaction.Axis][2]float64
	scales  map[interaction.Axis]scale.Linear
}

func newPanel(p *Plot, cfg PanelConfig) (*Panel, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("panel with empty id")
	}

	panel := &Panel{
		cfg:     cfg,
		plot:    p,
		machine: interaction.NewMachine(),
		events:  newEmitter(),
		extents: make(map[interaction.Axis][2]float64),
		scales:  make(map[interaction.Axis]scale.Linear),
	}
	panel.events.forward = p.events

	for _, lc := range cfg.DataLayers {
		layer, err := newDataLayer(lc, panel, p.transforms)
		if err != nil {
			return nil, err
		}
		panel.layers = append(panel.layers, layer)
	}
	sort.SliceStable(panel.layers, func(i, j int) bool {
		return panel.layers[i].cfg.ZIndex < panel.layers[j].cfg.ZIndex
	})

	panel.machine.OnZoomCommit = func(c interaction.Commit) {
		// Debounce timer fires off the event path; commit with a
		// background context.
		panel.applyCommit(context.Background(), c)
	}
	return panel, nil
}

// ID returns the panel id, unique within the plot.
func (p *Panel) ID() string { return p.cfg.ID }

// Config returns the panel configuration.
func (p *Panel) Config() PanelConfig { return p.cfg }

// Layers returns the panel's data layers in z order.
func (p *Panel) Layers() []*DataLayer { return p.layers }

// Layer returns a layer by id, or nil.
func (p *Panel) Layer(id string) *DataLayer {
	for _, l := range p.layers {
		if l.cfg.ID == id {
			return l
		}
	}
	return nil
}

// Box returns the solved pixel geometry from the last layout pass.
func (p *Panel) Box() layout.PanelBox {
	p.plot.mu.Lock()
	defer p.plot.mu.Unlock()
	return p.box
}

// On subscribes to panel-level events.
func (p *Panel) On(name string, fn Listener) { p.events.On(name, fn) }

// plotArea returns the drawable width and height inside the margins.
func (p *Panel) plotArea() (w, h float64) {
	w = p.box.Width - p.cfg.Margins.Left - p.cfg.Margins.Right
	h = p.box.Height - p.cfg.Margins.Top - p.cfg.Margins.Bottom
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// computeScales recomputes committed extents and scales for all three
// axes from current layer data, layer axis config and state. Extents are
// derived, never stored across refreshes; calling this twice with
// unchanged inputs yields identical results. Concurrent callers must
// hold the plot mutex.
func (p *Panel) computeScales() {
	w, h := p.plotArea()
	region := p.plot.state.Region()

	// Horizontal axis: "state" extent pins to the region; otherwise
	// union the layers with a region fallback when no layer has data.
	var xExt [2]float64
	if p.cfg.Axes.X.Extent == "state" {
		xExt = [2]float64{float64(region.Start), float64(region.End)}
	} else {
		contribs := make([]scale.Contribution, 0, len(p.layers))
		for _, l := range p.layers {
			contribs = append(contribs, l.xContribution())
		}
		ext, ok := scale.Extent(contribs)
		if !ok {
			ext = [2]float64{float64(region.Start), float64(region.End)}
		}
		xExt = ext
	}
	p.extents[interaction.AxisX] = xExt
	p.scales[interaction.AxisX] = scale.NewLinear(xExt[0], xExt[1], 0, w)

	for _, axis := range []interaction.Axis{interaction.AxisY1, interaction.AxisY2} {
		var contribs []scale.Contribution
		for _, l := range p.layers {
			if l.cfg.YField == "" || l.YAxisID() != axis {
				continue
			}
			contribs = append(contribs, l.yContribution())
		}
		spec := p.cfg.Axes.Spec(axis)
		if spec.Floor != nil && spec.Ceiling != nil {
			ext := [2]float64{*spec.Floor, *spec.Ceiling}
			p.extents[axis] = ext
			p.scales[axis] = scale.NewLinear(ext[0], ext[1], h, 0)
			continue
		}
		ext, ok := scale.Extent(contribs)
		if !ok {
			delete(p.extents, axis)
			delete(p.scales, axis)
			continue
		}
		p.extents[axis] = ext
		// Pixel y grows downward; the scale inverts it.
		p.scales[axis] = scale.NewLinear(ext[0], ext[1], h, 0)
	}
}

// Extent returns the committed extent of an axis.
func (p *Panel) Extent(axis interaction.Axis) ([2]float64, bool) {
	p.plot.mu.Lock()
	defer p.plot.mu.Unlock()
	ext, ok := p.extents[axis]
	return ext, ok
}

// Scale returns the committed scale of an axis.
func (p *Panel) Scale(axis interaction.Axis) (scale.Linear, bool) {
	p.plot.mu.Lock()
	defer p.plot.mu.Unlock()
	s, ok := p.scales[axis]
	return s, ok
}

// RenderScale returns the scale to draw an axis with right now: the
// committed scale, overridden by the live-shifted extent while a gesture
// is in progress. This is the pure preview path; committed state and
// caches are untouched.
func (p *Panel) RenderScale(axis interaction.Axis) (scale.Linear, bool) {
	p.plot.mu.Lock()
	base, ok := p.scales[axis]
	p.plot.mu.Unlock()
	if !ok {
		return scale.Linear{}, false
	}
	if dragAxis, ext, live := p.machine.DragExtent(); live && dragAxis == axis {
		return scale.NewLinear(ext[0], ext[1], base.RangeMin, base.RangeMax), true
	}
	if ext, live := p.machine.ZoomExtent(); live && axis == interaction.AxisX {
		return scale.NewLinear(ext[0], ext[1], base.RangeMin, base.RangeMax), true
	}
	return base, true
}

// Ticks generates the tick values to draw for an axis.
func (p *Panel) Ticks(axis interaction.Axis) []float64 {
	p.plot.mu.Lock()
	ext, ok := p.extents[axis]
	p.plot.mu.Unlock()
	if !ok {
		return nil
	}
	spec := p.cfg.Axes.Spec(axis)
	return scale.PrettyTicks(ext[0], ext[1], spec.Ticks, scale.ClipBoth)
}

// PointerDown begins a drag gesture when the panel's interaction config
// permits the method. Events arriving while another gesture is active are
// dropped by the machine's gating.
func (p *Panel) PointerDown(method interaction.DragMethod, x, y float64) error {
	if !p.cfg.Interaction.AllowsDrag(method) {
		return nil
	}
	p.plot.mu.Lock()
	base, ok := p.scales[method.Axis()]
	p.plot.mu.Unlock()
	if !ok {
		return nil
	}
	return p.machine.StartDrag(method, x, y, base)
}

// PointerMove updates an in-progress drag.
func (p *Panel) PointerMove(x, y float64, shift bool) {
	p.machine.MoveDrag(x, y, shift)
}

// PointerUp ends a drag, committing the shifted extent when the pointer
// actually moved.
func (p *Panel) PointerUp(ctx context.Context) error {
	commit, ok := p.machine.EndDrag()
	if !ok {
		return nil
	}
	return p.applyCommit(ctx, commit)
}

// Wheel feeds a scroll event into the zoom gesture, bounded so the
// resulting region cannot leave the configured scale limits.
func (p *Panel) Wheel(delta, anchorPx float64) error {
	if !p.cfg.Interaction.ScrollToZoom {
		return nil
	}
	p.plot.mu.Lock()
	base, ok := p.scales[interaction.AxisX]
	p.plot.mu.Unlock()
	if !ok {
		return nil
	}
	err := p.machine.Wheel(delta, anchorPx, base,
		float64(p.plot.cfg.MinRegionScale), float64(p.plot.cfg.MaxRegionScale))
	if err == interaction.ErrBusy {
		return nil
	}
	return err
}

// CommitZoomNow flushes a pending zoom without waiting for the debounce.
func (p *Panel) CommitZoomNow(ctx context.Context) error {
	commit, ok := p.machine.EndZoom()
	if !ok {
		return nil
	}
	return p.applyCommit(ctx, commit)
}

// applyCommit folds a finished gesture into committed state. Horizontal
// commits become a region state update refetching this panel and its
// x-linked siblings; vertical commits overwrite the dependent layers'
// axis bounds on this panel and every linked sibling under one lock,
// then re-render locally.
func (p *Panel) applyCommit(ctx context.Context, c interaction.Commit) error {
	if c.Axis == interaction.AxisX {
		region := p.plot.state.Region()
		region.Start = int64(math.Round(c.Extent[0]))
		region.End = int64(math.Round(c.Extent[1]))
		return p.plot.commitRegion(ctx, region, p)
	}

	p.plot.mu.Lock()
	targets := []*Panel{p}
	if p.cfg.Interaction.Linked(c.Axis) {
		for _, sibling := range p.plot.panels {
			if sibling != p && sibling.cfg.Interaction.Linked(c.Axis) {
				targets = append(targets, sibling)
			}
		}
	}
	for _, t := range targets {
		for _, l := range t.layers {
			if l.cfg.YField != "" && l.YAxisID() == c.Axis {
				l.overwriteYAxisExtent(c.Extent)
			}
		}
		t.computeScales()
	}
	p.plot.mu.Unlock()

	for _, t := range targets {
		t.events.Emit(Event{Name: EventLayoutChanged, PanelID: t.cfg.ID})
	}
	return nil
}
