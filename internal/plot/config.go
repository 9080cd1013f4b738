package plot

import (
	"fmt"

	"github.com/locusview/server/internal/interaction"
	"github.com/locusview/server/internal/layout"
)

// Config is the plot-level declarative layout surface. Optional fields
// default at construction; there is no runtime structural merging.
type Config struct {
	Width            float64 `yaml:"width" json:"width"`
	Height           float64 `yaml:"height" json:"height"`
	MinWidth         float64 `yaml:"min_width" json:"min_width"`
	MinHeight        float64 `yaml:"min_height" json:"min_height"`
	ResponsiveResize bool    `yaml:"responsive_resize" json:"responsive_resize"`
	AspectRatio      float64 `yaml:"aspect_ratio" json:"aspect_ratio"`

	// Region scale bounds in bases; zooms and state updates clamp to
	// them.
	MinRegionScale int64 `yaml:"min_region_scale" json:"min_region_scale"`
	MaxRegionScale int64 `yaml:"max_region_scale" json:"max_region_scale"`

	State  Region        `yaml:"state" json:"state"`
	Panels []PanelConfig `yaml:"panels" json:"panels"`
}

// PanelConfig describes one panel.
type PanelConfig struct {
	ID                 string  `yaml:"id" json:"id"`
	ProportionalHeight float64 `yaml:"proportional_height" json:"proportional_height"`
	ProportionalWidth  float64 `yaml:"proportional_width" json:"proportional_width"`
	MinWidth           float64 `yaml:"min_width" json:"min_width"`
	MinHeight          float64 `yaml:"min_height" json:"min_height"`

	Margins layout.Margins `yaml:"margin" json:"margin"`

	Axes        AxesConfig        `yaml:"axes" json:"axes"`
	Interaction InteractionConfig `yaml:"interaction" json:"interaction"`

	DataLayers []LayerConfig `yaml:"data_layers" json:"data_layers"`
}

// AxesConfig groups the three panel axes.
type AxesConfig struct {
	X  AxisSpec `yaml:"x" json:"x"`
	Y1 AxisSpec `yaml:"y1" json:"y1"`
	Y2 AxisSpec `yaml:"y2" json:"y2"`
}

// Spec returns the axis spec for an interaction axis id.
func (a *AxesConfig) Spec(axis interaction.Axis) *AxisSpec {
	switch axis {
	case interaction.AxisY1:
		return &a.Y1
	case interaction.AxisY2:
		return &a.Y2
	default:
		return &a.X
	}
}

// AxisSpec is the panel-level axis configuration.
type AxisSpec struct {
	Label   string   `yaml:"label" json:"label"`
	Floor   *float64 `yaml:"floor" json:"floor,omitempty"`
	Ceiling *float64 `yaml:"ceiling" json:"ceiling,omitempty"`
	Ticks   int      `yaml:"ticks" json:"ticks"`
	// Extent "state" pins the axis to the current region instead of
	// deriving it from layer data. Only meaningful on x.
	Extent string `yaml:"extent" json:"extent,omitempty"`
}

// InteractionConfig gates which gestures a panel accepts and which axes
// broadcast their committed viewport to sibling panels.
type InteractionConfig struct {
	DragBackgroundToPan bool `yaml:"drag_background_to_pan" json:"drag_background_to_pan"`
	DragXTicksToScale   bool `yaml:"drag_x_ticks_to_scale" json:"drag_x_ticks_to_scale"`
	DragY1TicksToScale  bool `yaml:"drag_y1_ticks_to_scale" json:"drag_y1_ticks_to_scale"`
	DragY2TicksToScale  bool `yaml:"drag_y2_ticks_to_scale" json:"drag_y2_ticks_to_scale"`
	ScrollToZoom        bool `yaml:"scroll_to_zoom" json:"scroll_to_zoom"`
	XLinked             bool `yaml:"x_linked" json:"x_linked"`
	Y1Linked            bool `yaml:"y1_linked" json:"y1_linked"`
	Y2Linked            bool `yaml:"y2_linked" json:"y2_linked"`
}

// AllowsDrag reports whether the config permits a drag method.
func (c InteractionConfig) AllowsDrag(m interaction.DragMethod) bool {
	switch m {
	case interaction.DragBackground:
		return c.DragBackgroundToPan
	case interaction.DragXTick:
		return c.DragXTicksToScale
	case interaction.DragY1Tick:
		return c.DragY1TicksToScale
	case interaction.DragY2Tick:
		return c.DragY2TicksToScale
	}
	return false
}

// Linked reports whether an axis broadcasts to sibling panels.
func (c InteractionConfig) Linked(axis interaction.Axis) bool {
	switch axis {
	case interaction.AxisX:
		return c.XLinked
	case interaction.AxisY1:
		return c.Y1Linked
	case interaction.AxisY2:
		return c.Y2Linked
	}
	return false
}

// LayerConfig describes one data layer.
type LayerConfig struct {
	ID   string `yaml:"id" json:"id"`
	Type string `yaml:"type" json:"type"`

	// Fields are the raw field identifiers this layer needs resolved,
	// e.g. "assoc:position", "assoc:pvalue|neglog10", "ld:state".
	Fields []string `yaml:"fields" json:"fields"`

	// XField and YField name the resolved fields driving each axis; they
	// must appear in Fields. IDField names the stable per-element id used
	// for selection state.
	XField  string `yaml:"x_field" json:"x_field"`
	YField  string `yaml:"y_field" json:"y_field"`
	IDField string `yaml:"id_field" json:"id_field"`

	// ColorField drives mark coloring (e.g. "ld:state" for r² bins).
	ColorField string `yaml:"color_field" json:"color_field,omitempty"`

	// YAxis selects y1 (1, default) or y2 (2) and shapes its extent.
	YAxis LayerAxisConfig `yaml:"y_axis" json:"y_axis"`

	ZIndex int `yaml:"z_index" json:"z_index"`
}

// LayerAxisConfig is the per-layer axis extent configuration. An
// interaction commit overwrites Floor/Ceiling and clears the rest, since
// explicit bounds then fully determine the extent.
type LayerAxisConfig struct {
	AxisNumber  int       `yaml:"axis" json:"axis"`
	Floor       *float64  `yaml:"floor" json:"floor,omitempty"`
	Ceiling     *float64  `yaml:"ceiling" json:"ceiling,omitempty"`
	LowerBuffer float64   `yaml:"lower_buffer" json:"lower_buffer,omitempty"`
	UpperBuffer float64   `yaml:"upper_buffer" json:"upper_buffer,omitempty"`
	MinExtent   []float64 `yaml:"min_extent" json:"min_extent,omitempty"`
	Ticks       []float64 `yaml:"ticks" json:"ticks,omitempty"`
	Decoupled   bool      `yaml:"decoupled" json:"decoupled,omitempty"`
}

// Axis maps the layer's y-axis number to an interaction axis id.
func (c LayerAxisConfig) Axis() interaction.Axis {
	if c.AxisNumber == 2 {
		return interaction.AxisY2
	}
	return interaction.AxisY1
}

// Registry holds named layout templates. It is an explicit object passed
// to plot construction; there is no process-wide template state.
type Registry struct {
	layouts map[string]Config
}

// NewRegistry returns a registry seeded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{layouts: make(map[string]Config)}
	r.Add("standard_association", StandardAssociationLayout())
	return r
}

// Add registers a template under a name.
func (r *Registry) Add(name string, cfg Config) {
	r.layouts[name] = cfg
}

// Get returns a copy of a named template.
func (r *Registry) Get(name string) (Config, error) {
	cfg, ok := r.layouts[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown layout %q", name)
	}
	return cfg, nil
}

// Names lists the registered template names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		out = append(out, name)
	}
	return out
}

func float64Ptr(v float64) *float64 { return &v }

// StandardAssociationLayout is the canonical two-panel layout: association
// scatter with LD coloring and recombination overlay on top, gene track
// below, x axes linked.
func StandardAssociationLayout() Config {
	return Config{
		Width:          800,
		Height:         450,
		MinWidth:       400,
		MinHeight:      300,
		MinRegionScale: 20000,
		MaxRegionScale: 4000000,
		Panels: []PanelConfig{
			{
				ID:                 "association",
				ProportionalHeight: 2.0 / 3.0,
				MinHeight:          200,
				Margins:            layout.Margins{Top: 35, Right: 50, Bottom: 40, Left: 50},
				Axes: AxesConfig{
					X:  AxisSpec{Label: "Chromosome (Mb)", Extent: "state"},
					Y1: AxisSpec{Label: "-log10 p-value"},
					Y2: AxisSpec{Label: "Recombination Rate (cM/Mb)"},
				},
				Interaction: InteractionConfig{
					DragBackgroundToPan: true,
					DragXTicksToScale:   true,
					DragY1TicksToScale:  true,
					ScrollToZoom:        true,
					XLinked:             true,
				},
				DataLayers: []LayerConfig{
					{
						ID:   "recombrate",
						Type: "line",
						Fields: []string{
							"recomb:position", "recomb:recomb_rate",
						},
						XField: "recomb:position",
						YField: "recomb:recomb_rate",
						YAxis: LayerAxisConfig{
							AxisNumber: 2,
							Floor:      float64Ptr(0),
							Ceiling:    float64Ptr(100),
						},
						ZIndex: 1,
					},
					{
						ID:   "associationpvalues",
						Type: "scatter",
						Fields: []string{
							"assoc:variant", "assoc:position",
							"assoc:pvalue|neglog10", "ld:state", "ld:isrefvar",
						},
						XField:     "assoc:position",
						YField:     "assoc:pvalue|neglog10",
						IDField:    "assoc:variant",
						ColorField: "ld:state",
						YAxis: LayerAxisConfig{
							AxisNumber:  1,
							Floor:       float64Ptr(0),
							UpperBuffer: 0.1,
							MinExtent:   []float64{0, 10},
						},
						ZIndex: 2,
					},
				},
			},
			{
				ID:                 "genes",
				ProportionalHeight: 1.0 / 3.0,
				MinHeight:          100,
				Margins:            layout.Margins{Top: 20, Right: 50, Bottom: 20, Left: 50},
				Axes: AxesConfig{
					X: AxisSpec{Extent: "state"},
				},
				Interaction: InteractionConfig{
					DragBackgroundToPan: true,
					ScrollToZoom:        true,
					XLinked:             true,
				},
				DataLayers: []LayerConfig{
					{
						ID:   "genes",
						Type: "genes",
						Fields: []string{
							"gene:gene_name", "gene:start", "gene:end",
							"gene:strand", "gene:exons",
						},
						XField:  "gene:start",
						IDField: "gene:gene_name",
						ZIndex:  1,
					},
				},
			},
		},
	}
}

// applyDefaults fills unset plot config values.
func applyDefaults(cfg *Config) {
	if cfg.Width == 0 {
		cfg.Width = 800
	}
	if cfg.Height == 0 {
		cfg.Height = 450
	}
	if cfg.MinRegionScale == 0 {
		cfg.MinRegionScale = 20000
	}
	if cfg.MaxRegionScale == 0 {
		cfg.MaxRegionScale = 4000000
	}
	if cfg.AspectRatio == 0 && cfg.Height > 0 {
		cfg.AspectRatio = cfg.Width / cfg.Height
	}
}
