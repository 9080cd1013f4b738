package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/locusview/server/internal/cache"
	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/plot"
	"github.com/locusview/server/internal/render"
	"github.com/locusview/server/internal/service"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	cfgs := []datasources.NamespaceConfig{
		{
			Namespace: "assoc",
			SourceConfig: datasources.SourceConfig{
				Type: "StaticJSON",
				Data: []map[string]interface{}{
					{"variant": "10:114550452_A/G", "position": 114550452.0, "pvalue": 0.02},
					{"variant": "10:114758349_T/C", "position": 114758349.0, "pvalue": 3.7e-12},
				},
			},
		},
	}
	ds, err := datasources.FromConfig(datasources.NewTypeRegistry(), cfgs)
	if err != nil {
		t.Fatalf("failed to build sources: %v", err)
	}

	p, err := plot.New(plot.Config{
		Width:  400,
		Height: 300,
		State:  plot.Region{Chrom: "10", Start: 114500000, End: 115100000},
		Panels: []plot.PanelConfig{
			{
				ID:   "association",
				Axes: plot.AxesConfig{X: plot.AxisSpec{Extent: "state"}},
				DataLayers: []plot.LayerConfig{
					{
						ID:     "scatter",
						Type:   "scatter",
						Fields: []string{"assoc:variant", "assoc:position", "assoc:pvalue|neglog10"},
						XField: "assoc:position",
						YField: "assoc:pvalue|neglog10",
						YAxis:  plot.LayerAxisConfig{AxisNumber: 1},
					},
				},
			},
		},
	}, ds, nil)
	if err != nil {
		t.Fatalf("failed to build plot: %v", err)
	}

	mgr, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: 8,
		ImageTTL:         time.Minute,
		DataCacheSize:    16,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	svc := service.NewPlotService(service.PlotServiceConfig{
		PlotID:   "gwas",
		Plot:     p,
		Cache:    mgr,
		Renderer: render.NewRenderer(render.Config{}),
	})

	registry := NewPlotRegistry("gwas", []string{"gwas"}, "Test")
	registry.Register("gwas", "standard_association", svc)

	return NewRouter(RouterConfig{
		Registry:    registry,
		Cache:       mgr,
		CORSOrigins: []string{"http://localhost:3000"},
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPlotsEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plots", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Default string     `json:"default"`
		Plots   []PlotInfo `json:"plots"`
		Title   string     `json:"title"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Default != "gwas" {
		t.Errorf("expected default gwas, got %q", resp.Default)
	}
	if len(resp.Plots) != 1 || resp.Plots[0].Layout != "standard_association" {
		t.Errorf("unexpected plots: %+v", resp.Plots)
	}
}

func TestRenderEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/p/gwas/render.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("response is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
		t.Errorf("unexpected image size %v", img.Bounds())
	}
}

func TestUnknownPlotReturns404(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/p/nope/render.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStateRoundTrip(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/p/gwas/api/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var before service.StateView
	if err := json.NewDecoder(rec.Body).Decode(&before); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if before.Region.Chrom != "10" {
		t.Errorf("unexpected region %+v", before.Region)
	}

	body := bytes.NewBufferString(`{"region":{"chr":"10","start":114600000,"end":114900000}}`)
	req = httptest.NewRequest(http.MethodPost, "/p/gwas/api/state", body)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var after service.StateView
	if err := json.NewDecoder(rec.Body).Decode(&after); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if after.Region.Start != 114600000 || after.Region.End != 114900000 {
		t.Errorf("unexpected region %+v", after.Region)
	}
	if after.Generation <= before.Generation {
		t.Errorf("generation did not advance: %d -> %d", before.Generation, after.Generation)
	}
}

func TestStateRegionQueryParam(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost,
		"/p/gwas/api/state?region=10:114,600,000-114,900,000", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view service.StateView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if view.Region.Start != 114600000 || view.Region.End != 114900000 {
		t.Errorf("unexpected region %+v", view.Region)
	}
}

func TestPanEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/p/gwas/api/pan",
		strings.NewReader(`{"delta":0.5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view service.StateView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// 600kb window shifted right by half a window.
	if view.Region.Start != 114800000 || view.Region.End != 115400000 {
		t.Errorf("unexpected region %+v", view.Region)
	}
}

func TestZoomEndpointRejectsBadFactor(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/p/gwas/api/zoom",
		strings.NewReader(`{"factor":0}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPanelDataEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/p/gwas/api/data/association", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out service.PanelData
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.Panel != "association" || len(out.Layers) != 1 {
		t.Errorf("unexpected payload: %+v", out)
	}

	req = httptest.NewRequest(http.MethodGet, "/p/gwas/api/data/missing", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown panel, got %d", rec.Code)
	}
}

func TestLayoutEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/p/gwas/api/layout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view service.LayoutView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if view.Width != 400 || view.Height != 300 {
		t.Errorf("unexpected size %gx%g", view.Width, view.Height)
	}
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    plot.Region
		wantErr bool
	}{
		{"10:114550452-115067678", plot.Region{Chrom: "10", Start: 114550452, End: 115067678}, false},
		{"chr10:1,000-2,000", plot.Region{Chrom: "chr10", Start: 1000, End: 2000}, false},
		{"10", plot.Region{}, true},
		{"10:114550452", plot.Region{}, true},
		{":1-2", plot.Region{}, true},
		{"10:a-b", plot.Region{}, true},
	}
	for _, tc := range tests {
		got, err := parseRegion(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRegion(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRegion(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseRegion(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
