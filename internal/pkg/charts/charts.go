// Package charts renders report figures with gonum/plot.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/ohowland/cgc_reserve/internal/pkg/results"
	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

var (
	ErrKind   = errors.New("charts: unknown chart")
	ErrFormat = errors.New("charts: unknown format")
)

// Kinds lists the charts Render understands.
var Kinds = []string{"dispatch", "reserve", "available", "capacity", "storage", "prices"}

// Formats lists the image formats Render understands.
var Formats = []string{"png", "svg"}

const (
	width  = 20 * vg.Centimeter
	height = 10 * vg.Centimeter
)

// Render draws chart kind of rep to w.
func Render(w io.Writer, rep results.Report, kind, format string) error {
	if !lo.Contains(Formats, format) {
		return fmt.Errorf("%w: %q", ErrFormat, format)
	}
	p, err := Build(rep, kind)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("charts: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Build returns the plot of chart kind.
func Build(rep results.Report, kind string) (*plot.Plot, error) {
	palette := lo.Associate(rep.Colors, func(c results.Color) (string, color.Color) {
		return c.Asset, parseHex(c.Color)
	})
	switch kind {
	case "dispatch":
		return Series(rep.Table, results.Dispatch, "Dispatch", palette)
	case "reserve":
		return Series(rep.Table, results.Reserve, "Reserve", palette)
	case "available":
		return Series(rep.Table, results.Available, "Available capacity", palette)
	case "capacity":
		return Capacity(rep.Capacity)
	case "storage":
		return Storage(rep.Storage)
	case "prices":
		return Prices(rep.Prices)
	}
	return nil, fmt.Errorf("%w: %q", ErrKind, kind)
}

func newPlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "snapshot"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, name string, ys []float64, c color.Color) error {
	xys := make(plotter.XYs, len(ys))
	for i, y := range ys {
		xys[i].X = float64(i + 1)
		xys[i].Y = y
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("charts: %s: %w", name, err)
	}
	if c != nil {
		l.LineStyle.Color = c
	}
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

// Series draws one line per asset for parameter of the long table.
func Series(tbl results.Table, parameter, title string, palette map[string]color.Color) (*plot.Plot, error) {
	p := newPlot(title, "MW")
	names, series := tbl.Series(parameter)
	for i, name := range names {
		if err := addLine(p, name, series[i], palette[name]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Capacity draws grouped bars of optimal capacity, average dispatch and
// average reserve per asset.
func Capacity(rows []results.CapacityRow) (*plot.Plot, error) {
	p := newPlot("Capacity", "MW")
	p.X.Label.Text = ""
	groups := []struct {
		name  string
		value func(results.CapacityRow) float64
		color color.Color
	}{
		{"p_nom_opt", func(r results.CapacityRow) float64 { return r.PNomOpt }, parseHex("#0068c9")},
		{"p", func(r results.CapacityRow) float64 { return r.AverageP }, parseHex("#68c900")},
		{"r", func(r results.CapacityRow) float64 { return r.AverageR }, parseHex("#c90068")},
	}
	bw := vg.Points(12)
	for i, g := range groups {
		values := plotter.Values(lo.Map(rows, func(r results.CapacityRow, _ int) float64 { return g.value(r) }))
		bars, err := plotter.NewBarChart(values, bw)
		if err != nil {
			return nil, fmt.Errorf("charts: %s: %w", g.name, err)
		}
		bars.LineStyle.Width = 0
		bars.Color = g.color
		bars.Offset = vg.Length(i-1) * bw
		p.Add(bars)
		p.Legend.Add(g.name, bars)
	}
	p.NominalX(lo.Map(rows, func(r results.CapacityRow, _ int) string { return r.Asset })...)
	return p, nil
}

// Storage draws state of charge, dispatch and reserve per storage unit.
func Storage(rows []results.StorageRow) (*plot.Plot, error) {
	p := newPlot("Storage", "MW / MWh")
	byAsset := lo.GroupBy(rows, func(r results.StorageRow) string { return r.Asset })
	assets := lo.Uniq(lo.Map(rows, func(r results.StorageRow, _ int) string { return r.Asset }))
	for _, a := range assets {
		rs := byAsset[a]
		lines := []struct {
			suffix string
			ys     []float64
			color  color.Color
		}{
			{"soc", lo.Map(rs, func(r results.StorageRow, _ int) float64 { return r.StateOfCharge }), parseHex("#0068c9")},
			{"p", lo.Map(rs, func(r results.StorageRow, _ int) float64 { return r.P }), parseHex("#c90068")},
			{"r", lo.Map(rs, func(r results.StorageRow, _ int) float64 { return r.R }), parseHex("#68c900")},
		}
		for _, l := range lines {
			if err := addLine(p, a+" "+l.suffix, l.ys, l.color); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Prices draws the energy and reserve shadow prices.
func Prices(rows []results.PriceRow) (*plot.Plot, error) {
	p := newPlot("Prices", "currency/MWh")
	energy := lo.Map(rows, func(r results.PriceRow, _ int) float64 { return r.Energy })
	reserve := lo.Map(rows, func(r results.PriceRow, _ int) float64 { return r.Reserve })
	if err := addLine(p, "energy", energy, parseHex("#0068c9")); err != nil {
		return nil, err
	}
	if err := addLine(p, "reserve", reserve, parseHex("#c90068")); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHex reads #rrggbb, returning black for anything else.
func parseHex(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return color.Black
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
