package scale

import "math"

// AxisConfig describes how one data layer shapes the extent of the axis it
// is bound to. Floor and Ceiling are absolute bounds; buffers are
// proportional to the raw data span; MinExtent is a range the final extent
// must include.
type AxisConfig struct {
	Field       string
	Floor       *float64
	Ceiling     *float64
	LowerBuffer float64
	UpperBuffer float64
	MinExtent   []float64
	// Decoupled layers render against the shared axis but do not
	// contribute their values to its extent.
	Decoupled bool
}

// HasExplicitBounds reports whether both floor and ceiling are set, in
// which case they fully determine the extent.
func (c AxisConfig) HasExplicitBounds() bool {
	return c.Floor != nil && c.Ceiling != nil
}

// Contribution is one layer's input to a shared axis extent: its numeric
// values for the bound field plus its axis configuration.
type Contribution struct {
	Values []float64
	Config AxisConfig
}

// Extent derives the [min,max] domain for one panel axis from every
// contributing layer. Explicit floor+ceiling on any layer win outright;
// otherwise each non-decoupled layer's value span is buffered, widened to
// its minimum extent and clamped by its one-sided floor or ceiling, and
// the final extent is the union of those per-layer extents, so the
// result does not depend on layer order. Returns ok=false when no rule
// produced a usable extent; callers fall back to the state region for
// the horizontal axis.
func Extent(contribs []Contribution) (ext [2]float64, ok bool) {
	for _, c := range contribs {
		if c.Config.HasExplicitBounds() {
			return [2]float64{*c.Config.Floor, *c.Config.Ceiling}, true
		}
	}

	min := math.Inf(1)
	max := math.Inf(-1)
	seen := false
	for _, c := range contribs {
		if c.Config.Decoupled {
			continue
		}
		lmin, lmax, layerOK := layerExtent(c)
		if !layerOK {
			continue
		}
		if lmin < min {
			min = lmin
		}
		if lmax > max {
			max = lmax
		}
		seen = true
	}
	if !seen {
		return [2]float64{}, false
	}
	return [2]float64{min, max}, true
}

// layerExtent applies one layer's axis directives to its own value span.
func layerExtent(c Contribution) (min, max float64, ok bool) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, v := range c.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		ok = true
	}
	if !ok {
		return 0, 0, false
	}

	cfg := c.Config
	span := max - min
	min -= span * cfg.LowerBuffer
	max += span * cfg.UpperBuffer

	if len(cfg.MinExtent) == 2 {
		if cfg.MinExtent[0] < min {
			min = cfg.MinExtent[0]
		}
		if cfg.MinExtent[1] > max {
			max = cfg.MinExtent[1]
		}
	}

	if cfg.Floor != nil && *cfg.Floor > min {
		min = *cfg.Floor
	}
	if cfg.Ceiling != nil && *cfg.Ceiling < max {
		max = *cfg.Ceiling
	}
	return min, max, true
}
