// Package scale computes axis extents from layer data and maps numeric
// domains onto pixel ranges.
package scale

// Linear is a monotonic linear domain to range mapping. It is rebuilt on
// every render pass and never persisted.
type Linear struct {
	DomainMin float64
	DomainMax float64
	RangeMin  float64
	RangeMax  float64
}

// NewLinear builds a scale mapping [domainMin,domainMax] onto
// [rangeMin,rangeMax].
func NewLinear(domainMin, domainMax, rangeMin, rangeMax float64) Linear {
	return Linear{DomainMin: domainMin, DomainMax: domainMax, RangeMin: rangeMin, RangeMax: rangeMax}
}

// Pos maps a domain value to range coordinates. A degenerate domain maps
// everything to the range midpoint.
func (s Linear) Pos(v float64) float64 {
	span := s.DomainMax - s.DomainMin
	if span == 0 {
		return (s.RangeMin + s.RangeMax) / 2
	}
	return s.RangeMin + (v-s.DomainMin)/span*(s.RangeMax-s.RangeMin)
}

// Invert maps a range coordinate back to the domain.
func (s Linear) Invert(px float64) float64 {
	span := s.RangeMax - s.RangeMin
	if span == 0 {
		return s.DomainMin
	}
	return s.DomainMin + (px-s.RangeMin)/span*(s.DomainMax-s.DomainMin)
}

// Translate returns a copy of the scale with the domain shifted by the
// domain-space equivalent of deltaPx range units. Used for live drag
// previews before a commit.
func (s Linear) Translate(deltaPx float64) Linear {
	rangeSpan := s.RangeMax - s.RangeMin
	if rangeSpan == 0 {
		return s
	}
	domainDelta := deltaPx / rangeSpan * (s.DomainMax - s.DomainMin)
	out := s
	out.DomainMin -= domainDelta
	out.DomainMax -= domainDelta
	return out
}
