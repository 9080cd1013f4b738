package api

import (
	"github.com/locusview/server/internal/service"
)

// PlotInfo contains information about a configured plot for the API
// response.
type PlotInfo struct {
	ID     string `json:"id"`
	Layout string `json:"layout"`
}

// PlotRegistry holds plot services for all configured plots.
type PlotRegistry struct {
	services    map[string]*service.PlotService
	layouts     map[string]string
	defaultPlot string
	plotOrder   []string
	title       string
}

// NewPlotRegistry creates a new plot registry.
func NewPlotRegistry(defaultPlot string, order []string, title string) *PlotRegistry {
	return &PlotRegistry{
		services:    make(map[string]*service.PlotService),
		layouts:     make(map[string]string),
		defaultPlot: defaultPlot,
		plotOrder:   order,
		title:       title,
	}
}

// Register adds a plot service under its id.
func (r *PlotRegistry) Register(plotID, layout string, svc *service.PlotService) {
	r.services[plotID] = svc
	r.layouts[plotID] = layout
}

// Get returns the plot service for an id, or nil if not found.
func (r *PlotRegistry) Get(plotID string) *service.PlotService {
	return r.services[plotID]
}

// Default returns the default plot's service.
func (r *PlotRegistry) Default() *service.PlotService {
	return r.services[r.defaultPlot]
}

// DefaultPlotID returns the default plot ID.
func (r *PlotRegistry) DefaultPlotID() string {
	return r.defaultPlot
}

// PlotIDs returns all plot IDs in config order.
func (r *PlotRegistry) PlotIDs() []string {
	return r.plotOrder
}

// Title returns the configured site title.
func (r *PlotRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "LocusView"
}

// Plots returns plot info for all registered plots.
func (r *PlotRegistry) Plots() []PlotInfo {
	infos := make([]PlotInfo, 0, len(r.plotOrder))
	for _, id := range r.plotOrder {
		infos = append(infos, PlotInfo{
			ID:     id,
			Layout: r.layouts[id],
		})
	}
	return infos
}
