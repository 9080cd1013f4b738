// Package layout distributes plot dimensions among stacked panels.
package layout

// Margins are the pixel insets between a panel's edge and its clip area.
type Margins struct {
	Top    float64 `yaml:"top" json:"top"`
	Right  float64 `yaml:"right" json:"right"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
	Left   float64 `yaml:"left" json:"left"`
}

// PanelBox is the solver's view of one panel: requested proportional share,
// hard pixel minimums, and the solved pixel geometry.
type PanelBox struct {
	ID string

	// ProportionalHeight is this panel's share of the plot height, in
	// (0,1]. Zero means unset; the solver assigns an equal share of
	// whatever the explicitly-set siblings leave unclaimed.
	ProportionalHeight float64
	ProportionalWidth  float64

	MinWidth  float64
	MinHeight float64

	// Solved geometry, written by Solve.
	Width   float64
	Height  float64
	OriginX float64
	OriginY float64
}

// PlotBox is the plot-level input and output of a layout pass.
type PlotBox struct {
	Width       float64
	Height      float64
	MinWidth    float64
	MinHeight   float64
	AspectRatio float64
}

// Solve runs one layout pass: normalizes sibling proportional heights to
// sum to exactly 1, assigns each panel pixel height and a stacked vertical
// origin, and reconciles the plot aspect ratio with the final dimensions.
// Panels are laid out in slice order; order is significant.
func Solve(plot *PlotBox, panels []*PanelBox) {
	if plot.Width < plot.MinWidth {
		plot.Width = plot.MinWidth
	}
	if plot.Height < plot.MinHeight {
		plot.Height = plot.MinHeight
	}

	NormalizeProportions(panels)

	// Pixel minimums are hard floors. A panel whose proportional share
	// would drop below its minimum gets explicit pixel sizing for this
	// pass; the remaining panels share what is left.
	remaining := plot.Height
	flexible := 0.0
	for _, p := range panels {
		h := p.ProportionalHeight * plot.Height
		if p.MinHeight > 0 && h < p.MinHeight {
			p.Height = p.MinHeight
			remaining -= p.MinHeight
		} else {
			p.Height = 0
			flexible += p.ProportionalHeight
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	for _, p := range panels {
		if p.Height == 0 {
			share := p.ProportionalHeight
			if flexible > 0 {
				share = p.ProportionalHeight / flexible
			}
			p.Height = share * remaining
		}
	}

	y := 0.0
	for _, p := range panels {
		if p.ProportionalWidth == 0 {
			p.ProportionalWidth = 1
		}
		p.Width = p.ProportionalWidth * plot.Width
		if p.MinWidth > 0 && p.Width < p.MinWidth {
			p.Width = p.MinWidth
		}
		p.OriginX = 0
		p.OriginY = y
		y += p.Height
	}

	// The stacked heights are authoritative; fold any minimum-driven
	// overflow back into the plot height and keep the aspect ratio
	// consistent with what will actually be drawn.
	if y > plot.Height {
		plot.Height = y
	}
	if plot.Height > 0 {
		plot.AspectRatio = plot.Width / plot.Height
	}
}

// NormalizeProportions rescales sibling proportional heights so they sum
// to exactly 1. Panels with no share are first assigned the mean of the
// set shares, or an equal split when none are set.
func NormalizeProportions(panels []*PanelBox) {
	if len(panels) == 0 {
		return
	}

	sum := 0.0
	set := 0
	for _, p := range panels {
		if p.ProportionalHeight > 0 {
			sum += p.ProportionalHeight
			set++
		}
	}

	if set == 0 {
		for _, p := range panels {
			p.ProportionalHeight = 1 / float64(len(panels))
		}
		return
	}

	if set < len(panels) {
		mean := sum / float64(set)
		for _, p := range panels {
			if p.ProportionalHeight == 0 {
				p.ProportionalHeight = mean
				sum += mean
			}
		}
	}

	for _, p := range panels {
		p.ProportionalHeight /= sum
	}
}
