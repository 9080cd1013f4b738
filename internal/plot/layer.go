package plot

import (
	"fmt"

	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/fieldspec"
	"github.com/locusview/server/internal/interaction"
	"github.com/locusview/server/internal/scale"
)

// DataLayer binds one resolved dataset to one visual representation
// within a panel. Field specs are parsed once at construction; an unknown
// transform or malformed field fails the whole panel setup.
type DataLayer struct {
	cfg   LayerConfig
	panel *Panel
	specs []fieldspec.FieldSpec

	chain *datasources.Chain
}

func newDataLayer(cfg LayerConfig, panel *Panel, transforms *fieldspec.Registry) (*DataLayer, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("panel %q: data layer with empty id", panel.ID())
	}
	specs, err := fieldspec.ParseAll(cfg.Fields, transforms)
	if err != nil {
		return nil, fmt.Errorf("panel %q layer %q: %w", panel.ID(), cfg.ID, err)
	}
	return &DataLayer{cfg: cfg, panel: panel, specs: specs}, nil
}

// ID returns the layer id, unique within its panel.
func (l *DataLayer) ID() string { return l.cfg.ID }

// Config returns the layer configuration. Interaction commits can pin
// the y axis bounds, so the config is read under the plot lock.
func (l *DataLayer) Config() LayerConfig {
	l.panel.plot.mu.Lock()
	defer l.panel.plot.mu.Unlock()
	return l.cfg
}

// FieldSpecs returns the parsed field specs this layer resolves.
func (l *DataLayer) FieldSpecs() []fieldspec.FieldSpec { return l.specs }

// Chain returns the layer's last resolved chain, nil before the first
// successful refresh.
func (l *DataLayer) Chain() *datasources.Chain {
	l.panel.plot.mu.Lock()
	defer l.panel.plot.mu.Unlock()
	return l.chain
}

// setChain assigns a resolved chain. Callers hold the plot mutex.
func (l *DataLayer) setChain(c *datasources.Chain) { l.chain = c }

// YAxisID returns the interaction axis this layer's y binding targets.
func (l *DataLayer) YAxisID() interaction.Axis { return l.cfg.YAxis.Axis() }

// FieldValues extracts the numeric values of one resolved output field.
func (l *DataLayer) FieldValues(field string) []float64 {
	l.panel.plot.mu.Lock()
	defer l.panel.plot.mu.Unlock()
	return l.fieldValues(field)
}

func (l *DataLayer) fieldValues(field string) []float64 {
	if l.chain == nil || field == "" {
		return nil
	}
	out := make([]float64, 0, len(l.chain.Body))
	for _, rec := range l.chain.Body {
		if v, ok := datasources.Numeric(rec, field); ok {
			out = append(out, v)
		}
	}
	return out
}

// xContribution is the layer's input to the shared x extent. Callers
// hold the plot mutex.
func (l *DataLayer) xContribution() scale.Contribution {
	return scale.Contribution{
		Values: l.fieldValues(l.cfg.XField),
		Config: scale.AxisConfig{Field: l.cfg.XField},
	}
}

// yContribution is the layer's input to the extent of its y axis.
// Callers hold the plot mutex.
func (l *DataLayer) yContribution() scale.Contribution {
	return scale.Contribution{
		Values: l.fieldValues(l.cfg.YField),
		Config: scale.AxisConfig{
			Field:       l.cfg.YField,
			Floor:       l.cfg.YAxis.Floor,
			Ceiling:     l.cfg.YAxis.Ceiling,
			LowerBuffer: l.cfg.YAxis.LowerBuffer,
			UpperBuffer: l.cfg.YAxis.UpperBuffer,
			MinExtent:   l.cfg.YAxis.MinExtent,
			Decoupled:   l.cfg.YAxis.Decoupled,
		},
	}
}

// overwriteYAxisExtent pins the layer's y axis to an explicit extent
// after an interaction commit. Floor and ceiling now fully determine the
// axis, so buffer, min-extent and tick directives are cleared. Callers
// hold the plot mutex.
func (l *DataLayer) overwriteYAxisExtent(ext [2]float64) {
	min, max := ext[0], ext[1]
	l.cfg.YAxis.Floor = &min
	l.cfg.YAxis.Ceiling = &max
	l.cfg.YAxis.LowerBuffer = 0
	l.cfg.YAxis.UpperBuffer = 0
	l.cfg.YAxis.MinExtent = nil
	l.cfg.YAxis.Ticks = nil
}

// Selected returns the ordered selected element ids for this layer.
func (l *DataLayer) Selected() []string {
	return l.panel.plot.state.Set(l.panel.ID(), l.cfg.ID, "selected")
}

// ToggleSelect flips an element's membership in the layer's selected set
// and emits element_clicked.
func (l *DataLayer) ToggleSelect(element string) {
	state := l.panel.plot.state
	selected := false
	for _, id := range state.Set(l.panel.ID(), l.cfg.ID, "selected") {
		if id == element {
			selected = true
			break
		}
	}
	if selected {
		state.RemoveFromSet(l.panel.ID(), l.cfg.ID, "selected", element)
	} else {
		state.AddToSet(l.panel.ID(), l.cfg.ID, "selected", element)
	}
	l.panel.events.Emit(Event{
		Name:    EventElementClicked,
		PanelID: l.panel.ID(),
		Data:    map[string]interface{}{"layer": l.cfg.ID, "element": element, "selected": !selected},
	})
}
