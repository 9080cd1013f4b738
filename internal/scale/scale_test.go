package scale

import (
	"math"
	"reflect"
	"testing"
)

func TestPrettyTicks(t *testing.T) {
	t.Run("zeroToTen", func(t *testing.T) {
		got := PrettyTicks(0, 10, 0, ClipNone)
		want := []float64{0, 2, 4, 6, 8, 10}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("unevenRange", func(t *testing.T) {
		got := PrettyTicks(14, 67, 0, ClipNone)
		want := []float64{10, 20, 30, 40, 50, 60, 70}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("lowClip", func(t *testing.T) {
		got := PrettyTicks(1, 21, 10, ClipLow)
		want := []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("degenerateRange", func(t *testing.T) {
		got := PrettyTicks(3, 3, 0, ClipNone)
		if !reflect.DeepEqual(got, []float64{3}) {
			t.Fatalf("expected single tick, got %v", got)
		}
	})

	t.Run("fractionalStep", func(t *testing.T) {
		got := PrettyTicks(0, 1, 0, ClipNone)
		want := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})
}

func TestLinear(t *testing.T) {
	s := NewLinear(100, 200, 0, 500)

	if got := s.Pos(150); got != 250 {
		t.Errorf("expected 250, got %v", got)
	}
	if got := s.Invert(250); got != 150 {
		t.Errorf("expected 150, got %v", got)
	}

	t.Run("roundTrip", func(t *testing.T) {
		for _, v := range []float64{100, 133.7, 200} {
			if got := s.Invert(s.Pos(v)); math.Abs(got-v) > 1e-9 {
				t.Errorf("round trip drifted: %v -> %v", v, got)
			}
		}
	})

	t.Run("translate", func(t *testing.T) {
		// Shifting right by 50px over a 500px range moves the domain
		// left by 10 units.
		shifted := s.Translate(50)
		if shifted.DomainMin != 90 || shifted.DomainMax != 190 {
			t.Errorf("unexpected shifted domain: [%v,%v]", shifted.DomainMin, shifted.DomainMax)
		}
	})
}

func TestExtent(t *testing.T) {
	fp := func(v float64) *float64 { return &v }

	t.Run("explicitBoundsWin", func(t *testing.T) {
		ext, ok := Extent([]Contribution{{
			Values: []float64{5, 50},
			Config: AxisConfig{Floor: fp(0), Ceiling: fp(10)},
		}})
		if !ok || ext != [2]float64{0, 10} {
			t.Fatalf("expected [0,10], got %v ok=%v", ext, ok)
		}
	})

	t.Run("unionAcrossLayers", func(t *testing.T) {
		ext, ok := Extent([]Contribution{
			{Values: []float64{3, 7}},
			{Values: []float64{1, 9}},
		})
		if !ok || ext != [2]float64{1, 9} {
			t.Fatalf("expected [1,9], got %v ok=%v", ext, ok)
		}
	})

	t.Run("decoupledLayerIgnored", func(t *testing.T) {
		ext, ok := Extent([]Contribution{
			{Values: []float64{3, 7}},
			{Values: []float64{-100, 100}, Config: AxisConfig{Decoupled: true}},
		})
		if !ok || ext != [2]float64{3, 7} {
			t.Fatalf("expected [3,7], got %v ok=%v", ext, ok)
		}
	})

	t.Run("buffersAndMinExtent", func(t *testing.T) {
		ext, ok := Extent([]Contribution{{
			Values: []float64{2, 12},
			Config: AxisConfig{Field: "y", UpperBuffer: 0.1, MinExtent: []float64{0, 10}},
		}})
		if !ok || ext != [2]float64{0, 13} {
			t.Fatalf("expected [0,13], got %v ok=%v", ext, ok)
		}
	})

	t.Run("layerOrderDoesNotMatter", func(t *testing.T) {
		// Each layer's buffer and min-extent directives shape its own
		// span before the union, so swapping layers changes nothing.
		a := Contribution{
			Values: []float64{2, 12},
			Config: AxisConfig{Field: "y", MinExtent: []float64{0, 10}},
		}
		b := Contribution{
			Values: []float64{5, 6},
			Config: AxisConfig{Field: "y", UpperBuffer: 1.0},
		}
		ext1, ok1 := Extent([]Contribution{a, b})
		ext2, ok2 := Extent([]Contribution{b, a})
		if !ok1 || !ok2 || ext1 != ext2 {
			t.Fatalf("extent depends on layer order: %v vs %v", ext1, ext2)
		}
		if ext1 != [2]float64{0, 12} {
			t.Fatalf("expected [0,12], got %v", ext1)
		}
	})

	t.Run("oneSidedFloorClamps", func(t *testing.T) {
		ext, ok := Extent([]Contribution{{
			Values: []float64{-4, 8},
			Config: AxisConfig{Field: "y", Floor: fp(0)},
		}})
		if !ok || ext != [2]float64{0, 8} {
			t.Fatalf("expected [0,8], got %v ok=%v", ext, ok)
		}
	})

	t.Run("emptyInput", func(t *testing.T) {
		if _, ok := Extent(nil); ok {
			t.Fatal("expected ok=false for no contributions")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		contribs := []Contribution{{
			Values: []float64{1.000000001, 99.5},
			Config: AxisConfig{Field: "y", LowerBuffer: 0.05, UpperBuffer: 0.05},
		}}
		a, _ := Extent(contribs)
		b, _ := Extent(contribs)
		if a != b {
			t.Fatalf("extent not bit-identical: %v vs %v", a, b)
		}
	})
}
