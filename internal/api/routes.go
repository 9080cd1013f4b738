// Package api provides HTTP handlers for the LocusView server.
package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/locusview/server/internal/cache"
	"github.com/locusview/server/internal/plot"
	"github.com/locusview/server/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *PlotRegistry
	Cache       *cache.Manager
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global plots endpoint (not plot-scoped)
	r.Get("/api/plots", plotsHandler(cfg.Registry))

	// Global cache stats
	r.Get("/api/stats", statsHandler(cfg.Cache))

	// Plot-scoped routes: /p/{plot}/...
	r.Route("/p/{plot}", func(r chi.Router) {
		r.Use(plotMiddleware(cfg.Registry))

		r.Get("/render.png", renderHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", stateHandler)
			r.Post("/state", applyStateHandler)
			r.Post("/pan", panHandler)
			r.Post("/zoom", zoomHandler)
			r.Get("/layout", layoutHandler)
			r.Get("/data/{panel}", panelDataHandler)
		})
	})

	return r
}

// Context key for plot service
type ctxKey string

const plotServiceKey ctxKey = "plotService"

// plotMiddleware resolves the plot from URL and injects the plot service into context.
func plotMiddleware(registry *PlotRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plotID := chi.URLParam(r, "plot")
			svc := registry.Get(plotID)
			if svc == nil {
				http.Error(w, "plot not found: "+plotID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), plotServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getPlotService(r *http.Request) *service.PlotService {
	if svc, ok := r.Context().Value(plotServiceKey).(*service.PlotService); ok {
		return svc
	}
	return nil
}

// plotsHandler returns the list of available plots.
func plotsHandler(registry *PlotRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"default": registry.DefaultPlotID(),
			"plots":   registry.Plots(),
			"title":   registry.Title(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

func statsHandler(mgr *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			http.Error(w, "cache not configured", http.StatusNotImplemented)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mgr.Stats())
	}
}

func renderHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}

	data, err := svc.RenderPNG(r.Context())
	if err != nil {
		// Return a blank canvas on error so embedded <img> tags don't break
		data, _ = svc.EmptyPNG()
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write(data)
}

func stateHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(svc.State())
}

// applyStateHandler merges a partial state update. The body is a
// StateUpdate; a region given as "chrom:start-end" query params is also
// accepted for convenience.
func applyStateHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}

	var update plot.StateUpdate
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if region := strings.TrimSpace(r.URL.Query().Get("region")); region != "" {
		parsed, err := parseRegion(region)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		update.Region = &parsed
	}

	view, err := svc.ApplyState(r.Context(), update)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

type panRequest struct {
	Delta float64 `json:"delta"`
}

func panHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}

	var req panRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if math.IsNaN(req.Delta) || math.IsInf(req.Delta, 0) {
		http.Error(w, "invalid delta", http.StatusBadRequest)
		return
	}

	view, err := svc.Pan(r.Context(), req.Delta)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

type zoomRequest struct {
	Factor float64 `json:"factor"`
	Anchor float64 `json:"anchor"`
}

func zoomHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}

	// Anchor defaults to the window midpoint when omitted.
	req := zoomRequest{Anchor: 0.5}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if math.IsNaN(req.Factor) || math.IsInf(req.Factor, 0) || req.Factor <= 0 {
		http.Error(w, "factor must be a positive number", http.StatusBadRequest)
		return
	}

	view, err := svc.Zoom(r.Context(), req.Factor, req.Anchor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func layoutHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}

	view, err := svc.Layout(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func panelDataHandler(w http.ResponseWriter, r *http.Request) {
	svc := getPlotService(r)
	if svc == nil {
		http.Error(w, "plot service not found", http.StatusInternalServerError)
		return
	}

	panelID := chi.URLParam(r, "panel")
	data, err := svc.PanelData(r.Context(), panelID)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// parseRegion parses "chrom:start-end" (e.g. "10:114550452-115067678").
// Commas in positions are tolerated.
func parseRegion(s string) (plot.Region, error) {
	colon := strings.LastIndex(s, ":")
	if colon <= 0 || colon == len(s)-1 {
		return plot.Region{}, errInvalidRegion(s)
	}
	chrom := s[:colon]
	span := strings.ReplaceAll(s[colon+1:], ",", "")
	dash := strings.Index(span, "-")
	if dash <= 0 || dash == len(span)-1 {
		return plot.Region{}, errInvalidRegion(s)
	}
	start, err := strconv.ParseInt(span[:dash], 10, 64)
	if err != nil {
		return plot.Region{}, errInvalidRegion(s)
	}
	end, err := strconv.ParseInt(span[dash+1:], 10, 64)
	if err != nil {
		return plot.Region{}, errInvalidRegion(s)
	}
	return plot.Region{Chrom: chrom, Start: start, End: end}, nil
}

type errInvalidRegion string

func (e errInvalidRegion) Error() string {
	return "invalid region (expected chrom:start-end): " + string(e)
}
