package results

import (
	"math"

	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/samber/lo"
)

// Statistic summarises one asset over the horizon. Energies and money are
// weighted by the generator weightings, so they are annual figures.
type Statistic struct {
	Asset                  string  `json:"asset"`
	Carrier                string  `json:"carrier"`
	InstalledCapacity      float64 `json:"installed_capacity"`
	OptimalCapacity        float64 `json:"optimal_capacity"`
	Supply                 float64 `json:"supply"`
	Withdrawal             float64 `json:"withdrawal"`
	EnergyBalance          float64 `json:"energy_balance"`
	CapitalExpenditure     float64 `json:"capital_expenditure"`
	OperationalExpenditure float64 `json:"operational_expenditure"`
	Revenue                float64 `json:"revenue"`
	MarketValue            float64 `json:"market_value"`
	CapacityFactor         float64 `json:"capacity_factor"`
	Curtailment            float64 `json:"curtailment"`
}

// Statistics returns one Statistic per generator, then per storage unit.
func Statistics(s Solved) []Statistic {
	n := s.Network
	w := n.GeneratorWeightings
	hours := lo.Sum(w)

	stats := make([]Statistic, 0, len(n.Generators)+len(n.StorageUnits))
	for g, gen := range n.Generators {
		st := Statistic{
			Asset:             gen.Name,
			Carrier:           gen.Carrier,
			InstalledCapacity: gen.PNom,
			OptimalCapacity:   s.GeneratorPNomOpt[g],
		}
		for t := range n.Snapshots {
			p := s.GeneratorP[t][g]
			st.Supply += w[t] * math.Max(p, 0)
			st.Withdrawal += w[t] * math.Max(-p, 0)
			st.OperationalExpenditure += w[t] * gen.MarginalCost * p
			st.Revenue += w[t] * s.NodalPrice[t] * p
			st.Curtailment += w[t] * (gen.PMaxPu[t]*s.GeneratorPNomOpt[g] - p)
		}
		st.CapitalExpenditure = gen.CapitalCost * s.GeneratorPNomOpt[g]
		finish(&st, hours)
		stats = append(stats, st)
	}
	for su, unit := range n.StorageUnits {
		st := Statistic{
			Asset:             unit.Name,
			Carrier:           unit.Carrier,
			InstalledCapacity: unit.PNom,
			OptimalCapacity:   s.StoragePNomOpt[su],
		}
		for t := range n.Snapshots {
			p := s.StorageP[t][su]
			st.Supply += w[t] * math.Max(p, 0)
			st.Withdrawal += w[t] * math.Max(-p, 0)
			st.OperationalExpenditure += w[t] * unit.MarginalCost * math.Max(p, 0)
			st.Revenue += w[t] * s.NodalPrice[t] * p
		}
		st.CapitalExpenditure = unit.CapitalCost * s.StoragePNomOpt[su]
		finish(&st, hours)
		stats = append(stats, st)
	}
	return stats
}

func finish(st *Statistic, hours float64) {
	st.EnergyBalance = st.Supply - st.Withdrawal
	if st.Supply > 0 {
		st.MarketValue = st.Revenue / st.Supply
	}
	if st.OptimalCapacity > 0 && hours > 0 {
		st.CapacityFactor = st.Supply / (st.OptimalCapacity * hours)
	}
}

// CapacityRow is the optimised capacity of an asset with its average output
// and reserve.
type CapacityRow struct {
	Asset    string  `json:"asset"`
	PNomOpt  float64 `json:"p_nom_opt"`
	AverageP float64 `json:"p"`
	AverageR float64 `json:"r"`
}

func Capacity(s Solved) []CapacityRow {
	n := s.Network
	column := func(series [][]float64, i int) []float64 {
		return lo.Map(series, func(row []float64, _ int) float64 { return row[i] })
	}
	mean := func(v []float64) float64 {
		if len(v) == 0 {
			return 0
		}
		return lo.Sum(v) / float64(len(v))
	}

	rows := make([]CapacityRow, 0, len(n.Generators)+len(n.StorageUnits))
	for g, gen := range n.Generators {
		rows = append(rows, CapacityRow{
			Asset:    gen.Name,
			PNomOpt:  s.GeneratorPNomOpt[g],
			AverageP: mean(column(s.GeneratorP, g)),
			AverageR: mean(column(s.GeneratorR, g)),
		})
	}
	for su, unit := range n.StorageUnits {
		rows = append(rows, CapacityRow{
			Asset:    unit.Name,
			PNomOpt:  s.StoragePNomOpt[su],
			AverageP: mean(column(s.StorageP, su)),
			AverageR: mean(column(s.StorageR, su)),
		})
	}
	return rows
}

// PriceRow holds the energy and reserve shadow prices of a snapshot.
type PriceRow struct {
	Snapshot int     `json:"snapshot"`
	Energy   float64 `json:"energy"`
	Reserve  float64 `json:"reserve"`
}

func Prices(s Solved) []PriceRow {
	return lo.Map(s.Network.Snapshots, func(snap float64, t int) PriceRow {
		row := PriceRow{Snapshot: int(snap), Energy: s.NodalPrice[t]}
		if s.ReservePrice != nil {
			row.Reserve = s.ReservePrice[t]
		}
		return row
	})
}

// StorageRow is the state of one storage unit at one snapshot.
type StorageRow struct {
	Snapshot      int     `json:"snapshot"`
	Asset         string  `json:"asset"`
	StateOfCharge float64 `json:"state_of_charge"`
	P             float64 `json:"p"`
	R             float64 `json:"r"`
}

func StorageDetails(s Solved) []StorageRow {
	n := s.Network
	rows := make([]StorageRow, 0, len(n.Snapshots)*len(n.StorageUnits))
	for t, snap := range n.Snapshots {
		for su, unit := range n.StorageUnits {
			rows = append(rows, StorageRow{
				Snapshot:      int(snap),
				Asset:         unit.Name,
				StateOfCharge: s.StorageSoC[t][su],
				P:             s.StorageP[t][su],
				R:             s.StorageR[t][su],
			})
		}
	}
	return rows
}

// Color is the chart colour of an asset.
type Color struct {
	Asset string `json:"asset"`
	Color string `json:"color"`
}

// Colors returns asset colours in category order: renewables, dispatchable
// generators, then storage.
func Colors(s Solved) []Color {
	n := s.Network
	var vre, other []Color
	for _, g := range n.Generators {
		c := Color{g.Name, g.Color}
		if g.Carrier == network.VRE {
			vre = append(vre, c)
		} else {
			other = append(other, c)
		}
	}
	for _, u := range n.StorageUnits {
		other = append(other, Color{u.Name, u.Color})
	}
	return append(vre, other...)
}

// Report bundles everything derived from one solve.
type Report struct {
	Objective  float64       `json:"objective"`
	Table      Table         `json:"table"`
	Statistics []Statistic   `json:"statistics"`
	Capacity   []CapacityRow `json:"capacity"`
	Prices     []PriceRow    `json:"prices"`
	Storage    []StorageRow  `json:"storage"`
	Colors     []Color       `json:"colors"`
}

func NewReport(s Solved) Report {
	return Report{
		Objective:  s.Objective,
		Table:      Reshape(s),
		Statistics: Statistics(s),
		Capacity:   Capacity(s),
		Prices:     Prices(s),
		Storage:    StorageDetails(s),
		Colors:     Colors(s),
	}
}
