package interaction

import (
	"math"
	"testing"
	"time"

	"github.com/locusview/server/internal/scale"
)

func baseScale() scale.Linear {
	// The committed horizontal scale of a 500px-wide panel over a real
	// region extent.
	return scale.NewLinear(114550452, 115067678, 0, 500)
}

func TestBackgroundDrag(t *testing.T) {
	m := NewMachine()
	if err := m.StartDrag(DragBackground, 200, 50, baseScale()); err != nil {
		t.Fatalf("start drag failed: %v", err)
	}
	if m.State() != Dragging {
		t.Fatalf("expected dragging state")
	}

	m.MoveDrag(250, 50, false)

	axis, ext, ok := m.DragExtent()
	if !ok || axis != AxisX {
		t.Fatalf("expected live x extent, got axis=%v ok=%v", axis, ok)
	}

	// 50px right over 500px maps to 10% of the domain span, shifting the
	// extent left.
	span := 115067678.0 - 114550452.0
	wantMin := 114550452 - span*0.1
	if math.Abs(ext[0]-wantMin) > 1e-6 {
		t.Errorf("expected shifted min %v, got %v", wantMin, ext[0])
	}
	if math.Abs((ext[1]-ext[0])-span) > 1e-6 {
		t.Errorf("pan must preserve span, got %v", ext[1]-ext[0])
	}

	commit, ok := m.EndDrag()
	if !ok {
		t.Fatal("expected commit for non-zero displacement")
	}
	if commit.Axis != AxisX {
		t.Errorf("expected x commit, got %v", commit.Axis)
	}
	if math.Abs(commit.Extent[0]-wantMin) > 1e-6 {
		t.Errorf("commit extent mismatch: %v", commit.Extent)
	}
	if m.State() != Idle {
		t.Errorf("expected idle after commit")
	}
}

func TestDragWithoutDisplacementDoesNotCommit(t *testing.T) {
	m := NewMachine()
	m.StartDrag(DragBackground, 200, 50, baseScale())
	if _, ok := m.EndDrag(); ok {
		t.Fatal("expected no commit for zero displacement")
	}
}

func TestTickDragRescalesAboutAnchor(t *testing.T) {
	m := NewMachine()
	base := scale.NewLinear(0, 100, 0, 500)
	m.StartDrag(DragXTick, 250, 0, base)
	// 100px of drag doubles or halves the span.
	m.MoveDrag(350, 0, false)

	_, ext, ok := m.DragExtent()
	if !ok {
		t.Fatal("expected live extent")
	}
	// Anchor value 50 stays fixed, span halves: [25, 75].
	if math.Abs(ext[0]-25) > 1e-9 || math.Abs(ext[1]-75) > 1e-9 {
		t.Fatalf("expected [25,75], got %v", ext)
	}

	t.Run("shiftTurnsRescaleIntoTranslate", func(t *testing.T) {
		m.MoveDrag(350, 0, true)
		_, ext, _ := m.DragExtent()
		// Translate by 100px = 20 domain units leftward.
		if math.Abs(ext[0]-(-20)) > 1e-9 || math.Abs(ext[1]-80) > 1e-9 {
			t.Fatalf("expected [-20,80], got %v", ext)
		}
	})
}

func TestY1TickDragTargetsY1(t *testing.T) {
	m := NewMachine()
	m.StartDrag(DragY1Tick, 0, 300, scale.NewLinear(0, 10, 400, 0))
	m.MoveDrag(0, 200, false)
	axis, _, ok := m.DragExtent()
	if !ok || axis != AxisY1 {
		t.Fatalf("expected y1 axis, got %v", axis)
	}
}

func TestGestureGating(t *testing.T) {
	m := NewMachine()
	m.StartDrag(DragBackground, 0, 0, baseScale())

	if err := m.Wheel(-1, 250, baseScale(), 0, 0); err != ErrBusy {
		t.Errorf("expected ErrBusy starting zoom during drag, got %v", err)
	}
	if err := m.StartDrag(DragBackground, 0, 0, baseScale()); err != ErrBusy {
		t.Errorf("expected ErrBusy for nested drag, got %v", err)
	}
}

func TestWheelZoom(t *testing.T) {
	m := NewMachine()
	m.ZoomDebounce = time.Hour // commit manually

	base := scale.NewLinear(0, 1000, 0, 500)
	// Anchor in the middle; one zoom-in step shrinks the span to 900.
	if err := m.Wheel(-1, 250, base, 0, 0); err != nil {
		t.Fatalf("wheel failed: %v", err)
	}
	if m.State() != Zooming {
		t.Fatal("expected zooming state")
	}

	ext, ok := m.ZoomExtent()
	if !ok {
		t.Fatal("expected live zoom extent")
	}
	if math.Abs((ext[1]-ext[0])-900) > 1e-9 {
		t.Errorf("expected span 900, got %v", ext[1]-ext[0])
	}
	// Anchor value 500 keeps its 50% ratio.
	if math.Abs(ext[0]-50) > 1e-9 {
		t.Errorf("expected min 50, got %v", ext[0])
	}

	commit, ok := m.EndZoom()
	if !ok || commit.Axis != AxisX {
		t.Fatalf("expected x commit, got %+v ok=%v", commit, ok)
	}
	if m.State() != Idle {
		t.Error("expected idle after zoom commit")
	}
}

func TestWheelZoomClampedToRegionScale(t *testing.T) {
	m := NewMachine()
	m.ZoomDebounce = time.Hour

	base := scale.NewLinear(0, 1000, 0, 500)
	for i := 0; i < 50; i++ {
		m.Wheel(-1, 250, base, 800, 2000)
	}
	ext, _ := m.ZoomExtent()
	if math.Abs((ext[1]-ext[0])-800) > 1e-9 {
		t.Errorf("zoom-in must clamp at min span 800, got %v", ext[1]-ext[0])
	}
	m.EndZoom()

	for i := 0; i < 50; i++ {
		m.Wheel(1, 250, base, 800, 2000)
	}
	ext, _ = m.ZoomExtent()
	if math.Abs((ext[1]-ext[0])-2000) > 1e-9 {
		t.Errorf("zoom-out must clamp at max span 2000, got %v", ext[1]-ext[0])
	}
}

func TestZoomDebounceCommits(t *testing.T) {
	m := NewMachine()
	m.ZoomDebounce = 10 * time.Millisecond

	done := make(chan Commit, 1)
	m.OnZoomCommit = func(c Commit) { done <- c }

	m.Wheel(-1, 250, scale.NewLinear(0, 1000, 0, 500), 0, 0)

	select {
	case c := <-done:
		if c.Axis != AxisX {
			t.Errorf("expected x axis commit, got %v", c.Axis)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("zoom never committed after debounce")
	}
	if m.State() != Idle {
		t.Error("expected idle after debounced commit")
	}
}
