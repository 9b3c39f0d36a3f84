package charts

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/ohowland/cgc_reserve/internal/pkg/results"
	"gotest.tools/v3/assert"
)

func report(t *testing.T) results.Report {
	t.Helper()
	n := network.New()
	assert.NilError(t, n.SetSnapshots(3))
	assert.NilError(t, n.AddBus(network.Bus{Name: "b"}))
	assert.NilError(t, n.AddGenerator(network.Generator{Name: "g1", Bus: "b", Color: "#0068c9", PNom: 10}))
	assert.NilError(t, n.AddStorageUnit(network.StorageUnit{Name: "store", Bus: "b", Color: "#c90068", PNom: 2}))

	return results.NewReport(results.Solved{
		Network:          n,
		GeneratorP:       [][]float64{{5}, {6}, {7}},
		GeneratorR:       [][]float64{{1}, {1}, {1}},
		GeneratorPNomOpt: []float64{10},
		StorageP:         [][]float64{{0}, {-1}, {1}},
		StorageR:         [][]float64{{0}, {0}, {0}},
		StorageSoC:       [][]float64{{1}, {2}, {1}},
		StoragePNomOpt:   []float64{2},
		NodalPrice:       []float64{1, 2, 3},
		ReservePrice:     []float64{0, 0, 1},
	})
}

func TestRenderAllKinds(t *testing.T) {
	rep := report(t)
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			var png bytes.Buffer
			assert.NilError(t, Render(&png, rep, kind, "png"))
			assert.Assert(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))

			var svg bytes.Buffer
			assert.NilError(t, Render(&svg, rep, kind, "svg"))
			assert.Assert(t, strings.Contains(svg.String(), "<svg"))
		})
	}
}

func TestRenderRejectsUnknown(t *testing.T) {
	rep := report(t)
	var buf bytes.Buffer
	err := Render(&buf, rep, "pie", "png")
	assert.Assert(t, errors.Is(err, ErrKind))

	err = Render(&buf, rep, "dispatch", "gif")
	assert.Assert(t, errors.Is(err, ErrFormat))
	assert.Equal(t, buf.Len(), 0)
}

func TestParseHex(t *testing.T) {
	assert.Equal(t, parseHex("#68c900"), color.Color(color.RGBA{R: 0x68, G: 0xc9, B: 0x00, A: 0xff}))
	assert.Equal(t, parseHex("nope"), color.Color(color.Black))
	assert.Equal(t, parseHex("#fff"), color.Color(color.Black))
}
