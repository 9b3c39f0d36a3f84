package results

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"gotest.tools/v3/assert"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func solved(t *testing.T) Solved {
	t.Helper()
	n := network.New()
	assert.NilError(t, n.SetSnapshots(2))
	assert.NilError(t, n.AddBus(network.Bus{Name: "b"}))
	assert.NilError(t, n.AddLoad(network.Load{Name: "load", Bus: "b", PSet: []float64{8, 12}}))
	assert.NilError(t, n.AddGenerator(network.Generator{
		Name: "g1", Bus: "b", Carrier: network.Dispatchable, Color: "#0068c9",
		PNom: 10, MarginalCost: 2, CapitalCost: 5,
	}))
	assert.NilError(t, n.AddGenerator(network.Generator{
		Name: "VRES", Bus: "b", Carrier: network.VRE, Color: "#68c900",
		PNom: 4, PMaxPu: []float64{0.5, 1},
	}))
	assert.NilError(t, n.AddStorageUnit(network.StorageUnit{
		Name: "store", Bus: "b", Carrier: network.Electricity, Color: "#c90068", PNom: 2, MaxHours: 24,
	}))

	return Solved{
		Network:          n,
		Objective:        30,
		GeneratorP:       [][]float64{{7, 2}, {8, 3}},
		GeneratorR:       [][]float64{{1, 0}, {2, 0}},
		GeneratorPNomOpt: []float64{10, 4},
		StorageP:         [][]float64{{-1}, {1}},
		StorageR:         [][]float64{{0.5}, {0}},
		StorageSoC:       [][]float64{{1}, {0}},
		StoragePNomOpt:   []float64{2},
		NodalPrice:       []float64{2, 4},
		ReservePrice:     []float64{0, 1},
	}
}

func TestReshapeOrder(t *testing.T) {
	tbl := Reshape(solved(t))
	assert.Equal(t, len(tbl.Rows), 2*(3+3+2))

	want := []Row{
		{1, Dispatch, "g1", 7}, {1, Reserve, "g1", 1}, {1, Available, "g1", 10},
		{1, Dispatch, "VRES", 2}, {1, Reserve, "VRES", 0}, {1, Available, "VRES", 2},
		{1, Dispatch, "store", -1}, {1, Reserve, "store", 0.5},
		{2, Dispatch, "g1", 8}, {2, Reserve, "g1", 2}, {2, Available, "g1", 10},
		{2, Dispatch, "VRES", 3}, {2, Reserve, "VRES", 0}, {2, Available, "VRES", 4},
		{2, Dispatch, "store", 1}, {2, Reserve, "store", 0},
	}
	assert.DeepEqual(t, tbl.Rows, want)
}

func TestReshapeStorageHasNoAvailable(t *testing.T) {
	tbl := Reshape(solved(t)).Filter(Available, "store")
	assert.Equal(t, len(tbl.Rows), 0)
}

func TestSeries(t *testing.T) {
	names, series := Reshape(solved(t)).Series(Reserve)
	assert.DeepEqual(t, names, []string{"g1", "VRES", "store"})
	assert.DeepEqual(t, series, [][]float64{{1, 2}, {0, 0}, {0.5, 0}})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	assert.NilError(t, Reshape(solved(t)).WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), 17)
	assert.Equal(t, lines[0], "snapshot,parameter,generator,MW")
	assert.Assert(t, strings.HasPrefix(lines[1], "1,p,g1,7"), lines[1])

	buf.Reset()
	assert.NilError(t, Table{}.WriteCSV(&buf))
	assert.Equal(t, buf.String(), "snapshot,parameter,generator,MW\n")
}

func TestFrame(t *testing.T) {
	df := Reshape(solved(t)).Frame()
	assert.NilError(t, df.Err)
	rows, cols := df.Dims()
	assert.Equal(t, rows, 16)
	assert.Equal(t, cols, 4)
	assert.DeepEqual(t, df.Names(), []string{"snapshot", "parameter", "generator", "MW"})
}

func TestStatistics(t *testing.T) {
	stats := Statistics(solved(t))
	assert.Equal(t, len(stats), 3)
	w := 8760.0 / 2

	g := stats[0]
	assert.Equal(t, g.Asset, "g1")
	assert.Equal(t, g.Carrier, network.Dispatchable)
	assert.Assert(t, almostEqual(g.Supply, w*15))
	assert.Assert(t, almostEqual(g.OperationalExpenditure, w*30))
	assert.Assert(t, almostEqual(g.Revenue, w*(7*2+8*4)))
	assert.Assert(t, almostEqual(g.MarketValue, 46.0/15))
	assert.Assert(t, almostEqual(g.CapitalExpenditure, 50))
	assert.Assert(t, almostEqual(g.CapacityFactor, 15.0/20))
	assert.Assert(t, almostEqual(g.Curtailment, w*5))

	v := stats[1]
	assert.Assert(t, almostEqual(v.Curtailment, w*1))

	s := stats[2]
	assert.Equal(t, s.Asset, "store")
	assert.Assert(t, almostEqual(s.Supply, w))
	assert.Assert(t, almostEqual(s.Withdrawal, w))
	assert.Assert(t, almostEqual(s.EnergyBalance, 0))
	assert.Assert(t, almostEqual(s.Revenue, w*(-2+4)))
}

func TestCapacityAndPrices(t *testing.T) {
	s := solved(t)
	c := Capacity(s)
	assert.Equal(t, len(c), 3)
	assert.DeepEqual(t, c[0], CapacityRow{Asset: "g1", PNomOpt: 10, AverageP: 7.5, AverageR: 1.5})
	assert.DeepEqual(t, c[2], CapacityRow{Asset: "store", PNomOpt: 2, AverageP: 0, AverageR: 0.25})

	assert.DeepEqual(t, Prices(s), []PriceRow{{1, 2, 0}, {2, 4, 1}})

	s.ReservePrice = nil
	assert.Equal(t, Prices(s)[1].Reserve, 0.0)
}

func TestReport(t *testing.T) {
	r := NewReport(solved(t))
	assert.Equal(t, r.Objective, 30.0)
	assert.Equal(t, len(r.Storage), 2)
	assert.DeepEqual(t, r.Storage[0], StorageRow{Snapshot: 1, Asset: "store", StateOfCharge: 1, P: -1, R: 0.5})
	assert.DeepEqual(t, r.Colors, []Color{
		{"VRES", "#68c900"}, {"g1", "#0068c9"}, {"store", "#c90068"},
	})
}
