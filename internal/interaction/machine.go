// Package interaction tracks per-panel pan, zoom and drag gestures,
// producing live-shifted axis extents during a gesture and a committed
// extent when it ends.
package interaction

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/locusview/server/internal/scale"
)

// Axis identifies one of a panel's three axes.
type Axis string

const (
	AxisX  Axis = "x"
	AxisY1 Axis = "y1"
	AxisY2 Axis = "y2"
)

// DragMethod distinguishes what surface started the drag: the panel
// background pans, an axis tick rescales.
type DragMethod string

const (
	DragBackground DragMethod = "background"
	DragXTick      DragMethod = "x_tick"
	DragY1Tick     DragMethod = "y1_tick"
	DragY2Tick     DragMethod = "y2_tick"
)

// Axis returns the axis a drag method operates on.
func (m DragMethod) Axis() Axis {
	switch m {
	case DragY1Tick:
		return AxisY1
	case DragY2Tick:
		return AxisY2
	default:
		return AxisX
	}
}

// Status is the gesture state. Dragging and zooming are mutually
// exclusive; entering one while in the other is gated off.
type Status int

const (
	Idle Status = iota
	Dragging
	Zooming
)

// Commit is the result of a finished gesture: the axis and the extent its
// floor/ceiling must be overwritten with.
type Commit struct {
	Axis   Axis
	Extent [2]float64
}

// tickRescalePixels is the drag distance over which a tick drag halves or
// doubles the axis span.
const tickRescalePixels = 100.0

// DefaultZoomDebounce is how long after the last wheel event a zoom
// gesture commits.
const DefaultZoomDebounce = 300 * time.Millisecond

var (
	// ErrBusy is returned when a gesture is started while another kind of
	// gesture is in progress on the same panel.
	ErrBusy = errors.New("interaction: another gesture is in progress")
)

// Machine is one panel's gesture state machine. Pointer events drive it
// synchronously; only the zoom debounce timer fires asynchronously, so the
// mutable state is mutex-guarded.
type Machine struct {
	mu     sync.Mutex
	status Status

	// Drag state.
	method         DragMethod
	startX, startY float64
	curX, curY     float64
	shiftHeld      bool
	dragBase       scale.Linear

	// Zoom state.
	zoomBase     scale.Linear
	zoomSpan     float64
	zoomAnchorPx float64
	minSpan      float64
	maxSpan      float64
	zoomTimer    *time.Timer

	// ZoomDebounce is the idle timeout after the last wheel event before
	// the zoom commits. Zero means DefaultZoomDebounce.
	ZoomDebounce time.Duration

	// OnZoomCommit receives the commit when the debounce timer fires.
	OnZoomCommit func(Commit)
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{}
}

// State returns the current gesture status.
func (m *Machine) State() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// StartDrag begins a drag gesture. base is the committed scale of the axis
// the method operates on, captured so live previews shift against a fixed
// reference.
func (m *Machine) StartDrag(method DragMethod, x, y float64, base scale.Linear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Idle {
		return ErrBusy
	}
	m.status = Dragging
	m.method = method
	m.startX, m.startY = x, y
	m.curX, m.curY = x, y
	m.shiftHeld = false
	m.dragBase = base
	return nil
}

// MoveDrag updates the pointer position during a drag. shift switches a
// tick rescale into a plain translate for the duration of the hold.
func (m *Machine) MoveDrag(x, y float64, shift bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Dragging {
		return
	}
	m.curX, m.curY = x, y
	m.shiftHeld = shift
}

// DragExtent returns the live-shifted extent for the dragged axis. This is
// the preview pass: nothing is committed and no data fetch is triggered.
func (m *Machine) DragExtent() (Axis, [2]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Dragging {
		return "", [2]float64{}, false
	}
	return m.method.Axis(), m.shiftedExtent(), true
}

func (m *Machine) shiftedExtent() [2]float64 {
	var delta, anchor float64
	switch m.method.Axis() {
	case AxisX:
		delta = m.curX - m.startX
		anchor = m.startX
	default:
		delta = m.curY - m.startY
		anchor = m.startY
	}

	translate := m.method == DragBackground || m.shiftHeld
	if translate {
		s := m.dragBase.Translate(delta)
		return orderedExtent(s.DomainMin, s.DomainMax)
	}

	// Tick drag: rescale the domain about the value under the drag start
	// point, preserving the anchor ratio.
	factor := math.Pow(2, -delta/tickRescalePixels)
	anchorVal := m.dragBase.Invert(anchor)
	min := anchorVal + (m.dragBase.DomainMin-anchorVal)*factor
	max := anchorVal + (m.dragBase.DomainMax-anchorVal)*factor
	return orderedExtent(min, max)
}

// EndDrag finishes the drag. ok is false when net displacement was zero,
// in which case nothing should be committed.
func (m *Machine) EndDrag() (Commit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Dragging {
		return Commit{}, false
	}
	m.status = Idle
	if m.curX == m.startX && m.curY == m.startY {
		return Commit{}, false
	}
	return Commit{Axis: m.method.Axis(), Extent: m.shiftedExtent()}, true
}

// Wheel feeds one scroll event into a zoom gesture, starting it when idle.
// delta < 0 zooms in (factor 0.9 per event), delta > 0 zooms out (factor
// 1/0.9); the resulting span is clamped to [minSpan, maxSpan] and anchored
// at the pointer's horizontal position. The commit is deferred until
// ZoomDebounce elapses without further wheel events.
func (m *Machine) Wheel(delta, anchorPx float64, base scale.Linear, minSpan, maxSpan float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == Dragging {
		return ErrBusy
	}
	if m.status == Idle {
		m.status = Zooming
		m.zoomBase = base
		m.zoomSpan = base.DomainMax - base.DomainMin
		m.minSpan = minSpan
		m.maxSpan = maxSpan
	}
	m.zoomAnchorPx = anchorPx

	factor := 0.9
	if delta > 0 {
		factor = 1 / 0.9
	}
	m.zoomSpan *= factor
	if m.minSpan > 0 && m.zoomSpan < m.minSpan {
		m.zoomSpan = m.minSpan
	}
	if m.maxSpan > 0 && m.zoomSpan > m.maxSpan {
		m.zoomSpan = m.maxSpan
	}

	if m.zoomTimer != nil {
		m.zoomTimer.Stop()
	}
	d := m.ZoomDebounce
	if d == 0 {
		d = DefaultZoomDebounce
	}
	m.zoomTimer = time.AfterFunc(d, m.commitZoom)
	return nil
}

// ZoomExtent returns the live horizontal extent of the in-progress zoom.
func (m *Machine) ZoomExtent() ([2]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Zooming {
		return [2]float64{}, false
	}
	return m.zoomExtent(), true
}

func (m *Machine) zoomExtent() [2]float64 {
	anchorVal := m.zoomBase.Invert(m.zoomAnchorPx)
	rangeSpan := m.zoomBase.RangeMax - m.zoomBase.RangeMin
	ratio := 0.5
	if rangeSpan != 0 {
		ratio = (m.zoomAnchorPx - m.zoomBase.RangeMin) / rangeSpan
	}
	min := anchorVal - ratio*m.zoomSpan
	return orderedExtent(min, min+m.zoomSpan)
}

func (m *Machine) commitZoom() {
	if commit, ok := m.EndZoom(); ok && m.OnZoomCommit != nil {
		m.OnZoomCommit(commit)
	}
}

// EndZoom commits the zoom immediately. The debounce timer calls this;
// tests and teardown paths may call it directly.
func (m *Machine) EndZoom() (Commit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Zooming {
		return Commit{}, false
	}
	if m.zoomTimer != nil {
		m.zoomTimer.Stop()
		m.zoomTimer = nil
	}
	m.status = Idle
	return Commit{Axis: AxisX, Extent: m.zoomExtent()}, true
}

func orderedExtent(a, b float64) [2]float64 {
	if a > b {
		a, b = b, a
	}
	return [2]float64{a, b}
}
