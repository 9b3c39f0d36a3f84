// Package results turns a solved dispatch into the long result table and the
// report figures shown by the dashboard.
package results

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/samber/lo"
)

// Parameters of the long table.
const (
	Dispatch  = "p"
	Reserve   = "r"
	Available = "p_max"
)

// Solved is the solution of one augmented dispatch. Time series are indexed
// [snapshot][asset] in network order.
type Solved struct {
	Network   *network.Network
	Objective float64

	GeneratorP       [][]float64
	GeneratorR       [][]float64
	GeneratorPNomOpt []float64

	// StorageP is the net output p_dispatch - p_store.
	StorageP       [][]float64
	StorageR       [][]float64
	StorageSoC     [][]float64
	StoragePNomOpt []float64

	NodalPrice   []float64
	ReservePrice []float64
}

// Row is one line of the long table.
type Row struct {
	Snapshot  int     `json:"snapshot" dataframe:"snapshot"`
	Parameter string  `json:"parameter" dataframe:"parameter"`
	Asset     string  `json:"generator" dataframe:"generator"`
	MW        float64 `json:"MW" dataframe:"MW"`
}

// Table is the long result table.
type Table struct {
	Rows []Row `json:"rows"`
}

// Reshape flattens s into rows ordered snapshot, asset, parameter. Generators
// carry p, r and p_max rows; storage units carry p and r only.
func Reshape(s Solved) Table {
	n := s.Network
	G, S := len(n.Generators), len(n.StorageUnits)
	rows := make([]Row, 0, len(n.Snapshots)*(3*G+2*S))
	for t, snap := range n.Snapshots {
		for g, gen := range n.Generators {
			rows = append(rows,
				Row{int(snap), Dispatch, gen.Name, s.GeneratorP[t][g]},
				Row{int(snap), Reserve, gen.Name, s.GeneratorR[t][g]},
				Row{int(snap), Available, gen.Name, gen.PMaxPu[t] * s.GeneratorPNomOpt[g]},
			)
		}
		for su, unit := range n.StorageUnits {
			rows = append(rows,
				Row{int(snap), Dispatch, unit.Name, s.StorageP[t][su]},
				Row{int(snap), Reserve, unit.Name, s.StorageR[t][su]},
			)
		}
	}
	return Table{Rows: rows}
}

// Filter returns the rows of parameter, restricted to assets when any are
// given.
func (t Table) Filter(parameter string, assets ...string) Table {
	rows := lo.Filter(t.Rows, func(r Row, _ int) bool {
		return r.Parameter == parameter && (len(assets) == 0 || lo.Contains(assets, r.Asset))
	})
	return Table{Rows: rows}
}

// Series returns one time series per asset for parameter, in first seen
// asset order.
func (t Table) Series(parameter string) ([]string, [][]float64) {
	rows := t.Filter(parameter).Rows
	names := lo.Uniq(lo.Map(rows, func(r Row, _ int) string { return r.Asset }))
	grouped := lo.GroupBy(rows, func(r Row) string { return r.Asset })
	series := lo.Map(names, func(name string, _ int) []float64 {
		return lo.Map(grouped[name], func(r Row, _ int) float64 { return r.MW })
	})
	return names, series
}

// Frame returns the table as a data frame with columns snapshot, parameter,
// generator and MW. An empty table yields a frame carrying an error.
func (t Table) Frame() dataframe.DataFrame {
	return dataframe.LoadStructs(t.Rows)
}

// WriteCSV writes the table with a header line.
func (t Table) WriteCSV(w io.Writer) error {
	if len(t.Rows) == 0 {
		_, err := io.WriteString(w, "snapshot,parameter,generator,MW\n")
		return err
	}
	df := t.Frame()
	if df.Err != nil {
		return fmt.Errorf("results: %w", df.Err)
	}
	return df.WriteCSV(w)
}
