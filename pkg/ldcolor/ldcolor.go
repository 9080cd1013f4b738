// Package ldcolor provides color schemes for linkage-disequilibrium
// scatter plots.
package ldcolor

import (
	"image/color"
)

// Bin is one r² interval with its display color. A variant falls into the
// highest bin whose Min it reaches.
type Bin struct {
	Min   float64
	Label string
	Color color.RGBA
}

// Scheme maps r² values to thresholded colors, with dedicated colors for
// the reference variant and for variants with no LD information.
type Scheme struct {
	bins    []Bin
	missing color.RGBA
	refvar  color.RGBA
}

// Classic is the conventional five-bin regional association scheme: red
// for r² ≥ 0.8 down to dark blue below 0.2, purple for the reference
// variant, gray when LD is unavailable.
func Classic() Scheme {
	return Scheme{
		bins: []Bin{
			{Min: 0.8, Label: "0.8 - 1.0", Color: color.RGBA{212, 63, 58, 255}},
			{Min: 0.6, Label: "0.6 - 0.8", Color: color.RGBA{238, 162, 54, 255}},
			{Min: 0.4, Label: "0.4 - 0.6", Color: color.RGBA{92, 184, 92, 255}},
			{Min: 0.2, Label: "0.2 - 0.4", Color: color.RGBA{70, 184, 218, 255}},
			{Min: 0.0, Label: "0.0 - 0.2", Color: color.RGBA{53, 126, 189, 255}},
		},
		missing: color.RGBA{184, 184, 184, 255},
		refvar:  color.RGBA{150, 50, 184, 255},
	}
}

// At returns the color for an r² value.
func (s Scheme) At(r2 float64) color.Color {
	for _, b := range s.bins {
		if r2 >= b.Min {
			return b.Color
		}
	}
	return s.missing
}

// Missing returns the color for variants with no LD value.
func (s Scheme) Missing() color.Color { return s.missing }

// RefVar returns the reference-variant color.
func (s Scheme) RefVar() color.Color { return s.refvar }

// Legend returns the bins from strongest to weakest LD, for legend
// rendering.
func (s Scheme) Legend() []Bin {
	out := make([]Bin, len(s.bins))
	copy(out, s.bins)
	return out
}
