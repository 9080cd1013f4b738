// Package render draws plots to PNG using fogleman/gg.
package render

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/interaction"
	"github.com/locusview/server/internal/plot"
	"github.com/locusview/server/pkg/ldcolor"
)

// Config contains renderer configuration.
type Config struct {
	PointRadius float64
	LineWidth   float64
}

// Renderer renders whole plots and single panels. Contexts are created
// per render because plot geometry varies; encode buffers are pooled.
type Renderer struct {
	cfg        Config
	scheme     ldcolor.Scheme
	bufferPool sync.Pool
}

// NewRenderer creates a renderer with the classic LD color scheme.
func NewRenderer(cfg Config) *Renderer {
	if cfg.PointRadius <= 0 {
		cfg.PointRadius = 3
	}
	if cfg.LineWidth <= 0 {
		cfg.LineWidth = 1.5
	}
	return &Renderer{
		cfg:    cfg,
		scheme: ldcolor.Classic(),
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

var (
	frameColor  = color.RGBA{60, 60, 60, 255}
	labelColor  = color.RGBA{40, 40, 40, 255}
	lineColor   = color.RGBA{100, 149, 237, 255}
	geneColor   = color.RGBA{53, 126, 189, 255}
	neutralMark = color.RGBA{105, 105, 105, 255}
)

// RenderPlot draws every panel onto one canvas and encodes it as PNG.
func (r *Renderer) RenderPlot(p *plot.Plot) ([]byte, error) {
	box := p.Box()
	dc := gg.NewContext(int(box.Width), int(box.Height))
	dc.SetColor(color.White)
	dc.Clear()

	for _, panel := range p.Panels() {
		r.renderPanel(dc, panel)
	}
	return r.encode(dc)
}

func (r *Renderer) renderPanel(dc *gg.Context, panel *plot.Panel) {
	box := panel.Box()
	m := panel.Config().Margins
	ox := box.OriginX + m.Left
	oy := box.OriginY + m.Top
	w := box.Width - m.Left - m.Right
	h := box.Height - m.Top - m.Bottom
	if w < 1 || h < 1 {
		return
	}

	r.drawAxes(dc, panel, ox, oy, w, h)

	dc.Push()
	dc.DrawRectangle(ox, oy, w, h)
	dc.Clip()
	for _, layer := range panel.Layers() {
		switch layer.Config().Type {
		case "line":
			r.drawLine(dc, panel, layer, ox, oy)
		case "genes":
			r.drawGenes(dc, panel, layer, ox, oy, h)
		default:
			r.drawScatter(dc, panel, layer, ox, oy)
		}
	}
	dc.ResetClip()
	dc.Pop()
}

func (r *Renderer) drawAxes(dc *gg.Context, panel *plot.Panel, ox, oy, w, h float64) {
	axes := panel.Config().Axes
	dc.SetColor(frameColor)
	dc.SetLineWidth(1)

	// Bottom x axis.
	dc.DrawLine(ox, oy+h, ox+w, oy+h)
	dc.Stroke()
	if _, ok := panel.Scale(interaction.AxisX); ok {
		sx, _ := panel.RenderScale(interaction.AxisX)
		for _, v := range panel.Ticks(interaction.AxisX) {
			px := ox + sx.Pos(v)
			if px < ox || px > ox+w {
				continue
			}
			dc.DrawLine(px, oy+h, px, oy+h+4)
			dc.Stroke()
			dc.SetColor(labelColor)
			dc.DrawStringAnchored(formatMb(v), px, oy+h+12, 0.5, 0.5)
			dc.SetColor(frameColor)
		}
		if axes.X.Label != "" {
			dc.SetColor(labelColor)
			dc.DrawStringAnchored(axes.X.Label, ox+w/2, oy+h+26, 0.5, 0.5)
			dc.SetColor(frameColor)
		}
	}

	// Left y1 axis.
	if _, ok := panel.Scale(interaction.AxisY1); ok {
		sy, _ := panel.RenderScale(interaction.AxisY1)
		dc.DrawLine(ox, oy, ox, oy+h)
		dc.Stroke()
		for _, v := range panel.Ticks(interaction.AxisY1) {
			py := oy + sy.Pos(v)
			if py < oy || py > oy+h {
				continue
			}
			dc.DrawLine(ox-4, py, ox, py)
			dc.Stroke()
			dc.SetColor(labelColor)
			dc.DrawStringAnchored(formatTick(v), ox-8, py, 1, 0.5)
			dc.SetColor(frameColor)
		}
	}

	// Right y2 axis.
	if _, ok := panel.Scale(interaction.AxisY2); ok {
		sy, _ := panel.RenderScale(interaction.AxisY2)
		dc.DrawLine(ox+w, oy, ox+w, oy+h)
		dc.Stroke()
		for _, v := range panel.Ticks(interaction.AxisY2) {
			py := oy + sy.Pos(v)
			if py < oy || py > oy+h {
				continue
			}
			dc.DrawLine(ox+w, py, ox+w+4, py)
			dc.Stroke()
			dc.SetColor(labelColor)
			dc.DrawStringAnchored(formatTick(v), ox+w+8, py, 0, 0.5)
			dc.SetColor(frameColor)
		}
	}
}

func (r *Renderer) drawScatter(dc *gg.Context, panel *plot.Panel, layer *plot.DataLayer, ox, oy float64) {
	cfg := layer.Config()
	chain := layer.Chain()
	if chain == nil || cfg.XField == "" || cfg.YField == "" {
		return
	}
	sx, okX := panel.RenderScale(interaction.AxisX)
	sy, okY := panel.RenderScale(layer.YAxisID())
	if !okX || !okY {
		return
	}

	refField := refvarField(cfg.ColorField)
	for _, rec := range chain.Body {
		xv, ok := datasources.Numeric(rec, cfg.XField)
		if !ok {
			continue
		}
		yv, ok := datasources.Numeric(rec, cfg.YField)
		if !ok {
			continue
		}

		dc.SetColor(r.markColor(rec, cfg.ColorField, refField))
		dc.DrawCircle(ox+sx.Pos(xv), oy+sy.Pos(yv), r.cfg.PointRadius)
		dc.Fill()
	}
}

// markColor picks the point color: reference variant, LD bin, missing-LD
// gray, or a neutral mark when the layer has no color binding.
func (r *Renderer) markColor(rec datasources.Record, colorField, refField string) color.Color {
	if colorField == "" {
		return neutralMark
	}
	if refField != "" {
		if ref, ok := datasources.Numeric(rec, refField); ok && ref == 1 {
			return r.scheme.RefVar()
		}
	}
	v, ok := datasources.Numeric(rec, colorField)
	if !ok {
		return r.scheme.Missing()
	}
	return r.scheme.At(v)
}

// refvarField derives the sibling reference-variant flag for an LD state
// field, e.g. "ld:state" -> "ld:isrefvar".
func refvarField(colorField string) string {
	idx := strings.LastIndex(colorField, ":")
	if idx < 0 || colorField[idx+1:] != "state" {
		return ""
	}
	return colorField[:idx+1] + "isrefvar"
}

func (r *Renderer) drawLine(dc *gg.Context, panel *plot.Panel, layer *plot.DataLayer, ox, oy float64) {
	cfg := layer.Config()
	chain := layer.Chain()
	if chain == nil || cfg.XField == "" || cfg.YField == "" {
		return
	}
	sx, okX := panel.RenderScale(interaction.AxisX)
	sy, okY := panel.RenderScale(layer.YAxisID())
	if !okX || !okY {
		return
	}

	type pt struct{ x, y float64 }
	pts := make([]pt, 0, len(chain.Body))
	for _, rec := range chain.Body {
		xv, ok := datasources.Numeric(rec, cfg.XField)
		if !ok {
			continue
		}
		yv, ok := datasources.Numeric(rec, cfg.YField)
		if !ok {
			continue
		}
		pts = append(pts, pt{x: xv, y: yv})
	}
	if len(pts) < 2 {
		return
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	dc.SetColor(lineColor)
	dc.SetLineWidth(r.cfg.LineWidth)
	dc.MoveTo(ox+sx.Pos(pts[0].x), oy+sy.Pos(pts[0].y))
	for _, p := range pts[1:] {
		dc.LineTo(ox+sx.Pos(p.x), oy+sy.Pos(p.y))
	}
	dc.Stroke()
}

// gene track geometry
const (
	geneRowHeight  = 24.0
	geneBarHeight  = 4.0
	exonBarHeight  = 10.0
	geneLabelPadPx = 6.0
)

func (r *Renderer) drawGenes(dc *gg.Context, panel *plot.Panel, layer *plot.DataLayer, ox, oy, h float64) {
	cfg := layer.Config()
	chain := layer.Chain()
	if chain == nil || cfg.XField == "" {
		return
	}
	sx, ok := panel.RenderScale(interaction.AxisX)
	if !ok {
		return
	}

	ns := fieldNamespace(cfg.XField)
	type gene struct {
		name       string
		strand     string
		start, end float64
		exons      []interface{}
	}

	genes := make([]gene, 0, len(chain.Body))
	for _, rec := range chain.Body {
		start, okS := datasources.Numeric(rec, ns+"start")
		end, okE := datasources.Numeric(rec, ns+"end")
		if !okS || !okE {
			continue
		}
		g := gene{start: start, end: end}
		if v, ok := rec[ns+"gene_name"].(string); ok {
			g.name = v
		}
		if v, ok := rec[ns+"strand"].(string); ok {
			g.strand = v
		}
		if v, ok := rec[ns+"exons"].([]interface{}); ok {
			g.exons = v
		}
		genes = append(genes, g)
	}
	sort.Slice(genes, func(i, j int) bool { return genes[i].start < genes[j].start })

	// Greedy row packing: each gene drops into the first row where its
	// pixel span (label included) does not overlap the previous occupant.
	rowEnds := []float64{}
	maxRows := int(h / geneRowHeight)
	if maxRows < 1 {
		maxRows = 1
	}

	for _, g := range genes {
		x0 := ox + sx.Pos(g.start)
		x1 := ox + sx.Pos(g.end)
		if x1 < x0 {
			x0, x1 = x1, x0
		}
		label := geneLabel(g.name, g.strand)
		lw, _ := dc.MeasureString(label)
		spanStart := x0
		if lw > x1-x0 {
			spanStart = (x0+x1)/2 - lw/2
		}

		row := -1
		for i, end := range rowEnds {
			if spanStart > end+geneLabelPadPx {
				row = i
				break
			}
		}
		if row < 0 {
			if len(rowEnds) >= maxRows {
				continue
			}
			rowEnds = append(rowEnds, 0)
			row = len(rowEnds) - 1
		}
		spanEnd := x1
		if spanStart+lw > spanEnd {
			spanEnd = spanStart + lw
		}
		rowEnds[row] = spanEnd

		cy := oy + float64(row)*geneRowHeight + geneRowHeight/2

		dc.SetColor(geneColor)
		dc.DrawRectangle(x0, cy-geneBarHeight/2, x1-x0, geneBarHeight)
		dc.Fill()

		for _, raw := range g.exons {
			exon, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			es, okS := numericValue(exon["start"])
			ee, okE := numericValue(exon["end"])
			if !okS || !okE {
				continue
			}
			ex0 := ox + sx.Pos(es)
			ex1 := ox + sx.Pos(ee)
			if ex1 < ex0 {
				ex0, ex1 = ex1, ex0
			}
			dc.DrawRectangle(ex0, cy-exonBarHeight/2, ex1-ex0, exonBarHeight)
			dc.Fill()
		}

		dc.SetColor(labelColor)
		dc.DrawStringAnchored(label, (x0+x1)/2, cy-exonBarHeight/2-5, 0.5, 0.5)
	}
}

func geneLabel(name, strand string) string {
	switch strand {
	case "+":
		return name + " >"
	case "-":
		return "< " + name
	}
	return name
}

func fieldNamespace(field string) string {
	if idx := strings.LastIndex(field, ":"); idx >= 0 {
		return field[:idx+1]
	}
	return ""
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func formatMb(v float64) string {
	return strconv.FormatFloat(v/1e6, 'f', 2, 64)
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func (r *Renderer) encode(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// EmptyImage encodes a blank white canvas, served when rendering fails.
func (r *Renderer) EmptyImage(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
		img.Pix[i+1] = 255
		img.Pix[i+2] = 255
		img.Pix[i+3] = 255
	}

	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
