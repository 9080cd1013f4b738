// Package service provides business logic for the plot server.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/locusview/server/internal/cache"
	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/interaction"
	"github.com/locusview/server/internal/plot"
	"github.com/locusview/server/internal/render"
)

// PlotServiceConfig contains plot service configuration.
type PlotServiceConfig struct {
	PlotID   string
	Plot     *plot.Plot
	Cache    *cache.Manager
	Renderer *render.Renderer
	Logger   *log.Logger
}

// PlotService serves one configured plot: rendered images, state reads
// and updates, pan/zoom operations and resolved panel data.
type PlotService struct {
	plotID   string
	plot     *plot.Plot
	cache    *cache.Manager
	renderer *render.Renderer
	logger   *log.Logger

	// First data resolution is deferred until a request needs it, so a
	// plot backed by an unreachable upstream does not block startup.
	refreshOnce sync.Once
	refreshErr  error
}

// NewPlotService creates a new plot service.
func NewPlotService(cfg PlotServiceConfig) *PlotService {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PlotService{
		plotID:   cfg.PlotID,
		plot:     cfg.Plot,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		logger:   logger.With("plot", cfg.PlotID),
	}
}

// ID returns the plot id this service serves.
func (s *PlotService) ID() string { return s.plotID }

// Plot returns the underlying plot.
func (s *PlotService) Plot() *plot.Plot { return s.plot }

func (s *PlotService) ensureResolved(ctx context.Context) error {
	s.refreshOnce.Do(func() {
		s.refreshErr = s.plot.Refresh(ctx)
		if s.refreshErr != nil {
			s.logger.Error("initial data resolution failed", "err", s.refreshErr)
		}
	})
	return s.refreshErr
}

// RenderPNG renders the plot's current committed state, serving from the
// image cache when the region, size and generation all match.
func (s *PlotService) RenderPNG(ctx context.Context) ([]byte, error) {
	if err := s.ensureResolved(ctx); err != nil {
		return nil, err
	}

	region := s.plot.State().Region()
	box := s.plot.Box()
	key := cache.ImageKey(s.plotID, region.Chrom, region.Start, region.End,
		box.Width, box.Height, s.plot.Generation(), s.plot.State().Params())
	if data, ok := s.cache.GetImage(key); ok {
		return data, nil
	}

	data, err := s.renderer.RenderPlot(s.plot)
	if err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	s.cache.SetImage(key, data)
	return data, nil
}

// EmptyPNG returns a blank canvas at the plot's size, used as the error
// fallback for image responses.
func (s *PlotService) EmptyPNG() ([]byte, error) {
	box := s.plot.Box()
	return s.renderer.EmptyImage(int(box.Width), int(box.Height))
}

// StateView is the serialized shared state.
type StateView struct {
	Region     plot.Region       `json:"region"`
	Params     map[string]string `json:"params,omitempty"`
	Generation uint64            `json:"generation"`
}

// State returns the current shared state.
func (s *PlotService) State() StateView {
	return StateView{
		Region:     s.plot.State().Region(),
		Params:     s.plot.State().Params(),
		Generation: s.plot.Generation(),
	}
}

// ApplyState merges a partial state update and refetches every panel.
// A resolution overtaken by a newer update is not an error: the caller
// gets the state that actually won.
func (s *PlotService) ApplyState(ctx context.Context, update plot.StateUpdate) (StateView, error) {
	if err := s.ensureResolved(ctx); err != nil {
		return StateView{}, err
	}
	if err := s.plot.ApplyState(ctx, update); err != nil && !errors.Is(err, plot.ErrStale) {
		return StateView{}, err
	}
	return s.State(), nil
}

// Pan shifts the region by a fraction of its current span: -0.5 moves
// half a window left, 0.5 half a window right.
func (s *PlotService) Pan(ctx context.Context, deltaFrac float64) (StateView, error) {
	region := s.plot.State().Region()
	shift := int64(float64(region.Width()) * deltaFrac)
	region.Start += shift
	region.End += shift
	return s.ApplyState(ctx, plot.StateUpdate{Region: &region})
}

// Zoom rescales the region span by factor, keeping the position at
// anchorFrac (0 = left edge, 1 = right edge) fixed. The span is clamped
// to the plot's region scale bounds by state validation.
func (s *PlotService) Zoom(ctx context.Context, factor, anchorFrac float64) (StateView, error) {
	if factor <= 0 {
		return StateView{}, fmt.Errorf("zoom factor must be positive, got %g", factor)
	}
	if anchorFrac < 0 {
		anchorFrac = 0
	}
	if anchorFrac > 1 {
		anchorFrac = 1
	}

	region := s.plot.State().Region()
	span := float64(region.Width())
	newSpan := span * factor
	anchor := float64(region.Start) + anchorFrac*span

	start := anchor - anchorFrac*newSpan
	region.Start = int64(start + 0.5)
	region.End = int64(start + newSpan + 0.5)
	return s.ApplyState(ctx, plot.StateUpdate{Region: &region})
}

// LayerData is one layer's resolved rows.
type LayerData struct {
	ID   string               `json:"id"`
	Type string               `json:"type"`
	Rows []datasources.Record `json:"rows"`
}

// PanelData is the resolved dataset of one panel.
type PanelData struct {
	Panel  string      `json:"panel"`
	Region plot.Region `json:"region"`
	Layers []LayerData `json:"layers"`
}

// PanelData returns the resolved rows behind one panel as JSON, cached
// per region and generation.
func (s *PlotService) PanelData(ctx context.Context, panelID string) ([]byte, error) {
	if err := s.ensureResolved(ctx); err != nil {
		return nil, err
	}

	panel := s.plot.Panel(panelID)
	if panel == nil {
		return nil, fmt.Errorf("panel not found: %s", panelID)
	}

	region := s.plot.State().Region()
	key := cache.DataKey(s.plotID, panelID, region.Chrom, region.Start, region.End, s.plot.Generation())
	if data, ok := s.cache.GetData(key); ok {
		return data, nil
	}

	out := PanelData{Panel: panelID, Region: region}
	for _, layer := range panel.Layers() {
		ld := LayerData{ID: layer.ID(), Type: layer.Config().Type}
		if chain := layer.Chain(); chain != nil {
			ld.Rows = chain.Body
		}
		out.Layers = append(out.Layers, ld)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	s.cache.SetData(key, data)
	return data, nil
}

// AxisView is one axis's committed extent and ticks.
type AxisView struct {
	Extent [2]float64 `json:"extent"`
	Ticks  []float64  `json:"ticks"`
}

// PanelView is one panel's solved geometry and axes.
type PanelView struct {
	ID     string              `json:"id"`
	X      float64             `json:"x"`
	Y      float64             `json:"y"`
	Width  float64             `json:"width"`
	Height float64             `json:"height"`
	Axes   map[string]AxisView `json:"axes"`
}

// LayoutView is the solved plot geometry.
type LayoutView struct {
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Panels []PanelView `json:"panels"`
}

// Layout returns the solved geometry, extents and ticks for every panel.
func (s *PlotService) Layout(ctx context.Context) (LayoutView, error) {
	if err := s.ensureResolved(ctx); err != nil {
		return LayoutView{}, err
	}

	box := s.plot.Box()
	out := LayoutView{Width: box.Width, Height: box.Height}
	for _, panel := range s.plot.Panels() {
		pb := panel.Box()
		pv := PanelView{
			ID:     panel.ID(),
			X:      pb.OriginX,
			Y:      pb.OriginY,
			Width:  pb.Width,
			Height: pb.Height,
			Axes:   make(map[string]AxisView),
		}
		for _, axis := range []interaction.Axis{interaction.AxisX, interaction.AxisY1, interaction.AxisY2} {
			ext, ok := panel.Extent(axis)
			if !ok {
				continue
			}
			pv.Axes[string(axis)] = AxisView{Extent: ext, Ticks: panel.Ticks(axis)}
		}
		out.Panels = append(out.Panels, pv)
	}
	return out, nil
}
