// Package reserve extends a base dispatch model with symmetric balancing
// reserve provision by generators and storage units.
package reserve

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_reserve/internal/pkg/dispatch"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/rs/zerolog/log"
)

// Names of the variables and constraint families added to the model.
const (
	GeneratorVar   = "Generator-r"
	StorageVar     = "StorageUnit-r"
	Margin         = "reserve_margin"
	GeneratorUpper = "Generator-r-upper"
	GeneratorLower = "Generator-r-lower"
	StorageUpper   = "StorageUnit-r-upper"
	StoragePower   = "StorageUnit-r-upper2"
)

// Reserve holds the handles of an augmented model.
type Reserve struct {
	requirement float64
	gen         *optimize.VarGroup
	store       *optimize.VarGroup
	margin      *optimize.ConstraintFamily
}

// Augment adds reserve variables r ≥ 0 for every generator and storage unit
// and the constraints:
//
//	reserve_margin         Σ r = R
//	Generator-r-upper      p + r - p_nom_var ≤ p_max_pu·p_nom  (fixed units, no p_nom_var)
//	                       p + r - p_nom_var ≤ 0               (extendable units)
//	Generator-r-lower      r - p ≤ 0
//	StorageUnit-r-upper    r - soc ≤ 0
//	StorageUnit-r-upper2   p_store + p_dispatch + r - p_nom_var ≤ p_nom
//
// Augment must be called once per model; a second call fails with
// optimize.ErrDuplicate.
func Augment(m dispatch.Modeler, d dispatch.Dispatcher, requirement float64) (*Reserve, error) {
	if requirement < 0 || math.IsNaN(requirement) || math.IsInf(requirement, 0) {
		return nil, fmt.Errorf("reserve: invalid requirement %v", requirement)
	}
	n := d.Network()
	T, G, S := len(n.Snapshots), len(n.Generators), len(n.StorageUnits)

	gen, err := m.AddVariables(GeneratorVar, T, G, 0, math.Inf(1))
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}
	store, err := m.AddVariables(StorageVar, T, S, 0, math.Inf(1))
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}

	margin := make([]optimize.Constraint, 0, T)
	for t := 0; t < T; t++ {
		e := optimize.Expr{}
		for g := 0; g < G; g++ {
			e = e.Add(gen.At(t, g), 1)
		}
		for s := 0; s < S; s++ {
			e = e.Add(store.At(t, s), 1)
		}
		margin = append(margin, optimize.Eq(e, requirement))
	}

	p := d.GeneratorDispatch()
	upper := make([]optimize.Constraint, 0, T*G)
	lower := make([]optimize.Constraint, 0, T*G)
	for t := 0; t < T; t++ {
		for g, unit := range n.Generators {
			e := optimize.Sum(p.At(t, g), gen.At(t, g))
			rhs := 0.0
			if pnom, ok := d.GeneratorCapacity(g); ok {
				// p_max_pu is not applied here, so an extendable renewable
				// may hold p + r above its availability times p_nom_opt.
				e = e.Add(pnom, -1)
			} else {
				rhs = unit.PMaxPu[t] * unit.PNom
			}
			upper = append(upper, optimize.LessEq(e, rhs))
			lower = append(lower, optimize.LessEq(optimize.Sum(gen.At(t, g)).Add(p.At(t, g), -1), 0))
		}
	}

	soc, dis, chg := d.StateOfCharge(), d.StorageDispatch(), d.StorageCharge()
	energy := make([]optimize.Constraint, 0, T*S)
	power := make([]optimize.Constraint, 0, T*S)
	for t := 0; t < T; t++ {
		for s, unit := range n.StorageUnits {
			energy = append(energy, optimize.LessEq(optimize.Sum(store.At(t, s)).Add(soc.At(t, s), -1), 0))

			e := optimize.Sum(chg.At(t, s), dis.At(t, s), store.At(t, s))
			if pnom, ok := d.StorageCapacity(s); ok {
				e = e.Add(pnom, -1)
			}
			power = append(power, optimize.LessEq(e, unit.PNom))
		}
	}

	r := &Reserve{requirement: requirement, gen: gen, store: store}
	if r.margin, err = m.AddConstraints(Margin, margin); err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}
	families := []struct {
		name string
		cons []optimize.Constraint
	}{
		{GeneratorUpper, upper},
		{GeneratorLower, lower},
		{StorageUpper, energy},
		{StoragePower, power},
	}
	for _, f := range families {
		if _, err := m.AddConstraints(f.name, f.cons); err != nil {
			return nil, fmt.Errorf("reserve: %w", err)
		}
	}

	log.Debug().
		Float64("requirement", requirement).
		Int("generators", G).
		Int("storage_units", S).
		Msg("[Reserve] model augmented")
	return r, nil
}

func (r *Reserve) Requirement() float64 { return r.requirement }

// GeneratorReserve returns the reserve of generator g at snapshot t.
func (r *Reserve) GeneratorReserve(sol *optimize.Solution, t, g int) float64 {
	return sol.At(r.gen, t, g)
}

// StorageReserve returns the reserve of storage unit s at snapshot t.
func (r *Reserve) StorageReserve(sol *optimize.Solution, t, s int) float64 {
	return sol.At(r.store, t, s)
}

// MarginPrice returns the reserve_margin dual at snapshot t.
func (r *Reserve) MarginPrice(sol *optimize.Solution, t int) float64 {
	return sol.Dual(r.margin, t)
}

// Total returns Σ r at snapshot t.
func (r *Reserve) Total(sol *optimize.Solution, t int) float64 {
	_, G := r.gen.Dims()
	_, S := r.store.Dims()
	sum := 0.0
	for g := 0; g < G; g++ {
		sum += r.GeneratorReserve(sol, t, g)
	}
	for s := 0; s < S; s++ {
		sum += r.StorageReserve(sol, t, s)
	}
	return sum
}
