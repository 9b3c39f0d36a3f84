package lpdispatch

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
)

// buildGenerators adds generator dispatch and capacity variables. Fixed units
// are bounded directly by p_max_pu·p_nom, extendable units through rows
// against their capacity variable.
func buildGenerators(p *Problem) error {
	n := p.network
	T, G := len(n.Snapshots), len(n.Generators)
	m := p.model

	p.genExt = make([]int, G)
	nExt := 0
	for g, gen := range n.Generators {
		p.genExt[g] = -1
		if gen.PNomExtendable {
			p.genExt[g] = nExt
			nExt++
		}
	}

	var err error
	if p.genP, err = m.AddVariables("Generator-p", T, G, 0, math.Inf(1)); err != nil {
		return err
	}
	if p.genPNom, err = m.AddVariables("Generator-p_nom", 1, nExt, 0, math.Inf(1)); err != nil {
		return err
	}

	var upper, lower []optimize.Constraint
	obj := optimize.Expr{}
	for g, gen := range n.Generators {
		if k := p.genExt[g]; k >= 0 {
			pnom := p.genPNom.At(0, k)
			if err := m.SetBounds(pnom, gen.PNomMin, gen.PNomMax); err != nil {
				return fmt.Errorf("generator %q: %w", gen.Name, err)
			}
			obj = obj.Add(pnom, gen.CapitalCost)
			for t := 0; t < T; t++ {
				upper = append(upper, optimize.LessEq(
					optimize.Sum(p.genP.At(t, g)).Add(pnom, -gen.PMaxPu[t]), 0))
				if gen.PMinPu != 0 {
					lower = append(lower, optimize.GreaterEq(
						optimize.Sum(p.genP.At(t, g)).Add(pnom, -gen.PMinPu), 0))
				}
			}
		} else {
			for t := 0; t < T; t++ {
				lo, hi := gen.PMinPu*gen.PNom, gen.PMaxPu[t]*gen.PNom
				if err := m.SetBounds(p.genP.At(t, g), lo, hi); err != nil {
					return fmt.Errorf("generator %q: %w", gen.Name, err)
				}
			}
		}
		for t := 0; t < T; t++ {
			obj = obj.Add(p.genP.At(t, g), n.ObjectiveWeightings[t]*gen.MarginalCost)
		}
	}

	if _, err := m.AddConstraints("Generator-ext-p-upper", upper); err != nil {
		return err
	}
	if _, err := m.AddConstraints("Generator-ext-p-lower", lower); err != nil {
		return err
	}
	m.AddObjective(obj)
	return nil
}

// buildStorage adds storage dispatch, charge, state of charge and capacity
// variables and the state of charge energy balance.
func buildStorage(p *Problem) error {
	n := p.network
	T, S := len(n.Snapshots), len(n.StorageUnits)
	m := p.model

	p.storeExt = make([]int, S)
	nExt := 0
	for s, su := range n.StorageUnits {
		p.storeExt[s] = -1
		if su.PNomExtendable {
			p.storeExt[s] = nExt
			nExt++
		}
	}

	var err error
	if p.storeDispatch, err = m.AddVariables("StorageUnit-p_dispatch", T, S, 0, math.Inf(1)); err != nil {
		return err
	}
	if p.storeCharge, err = m.AddVariables("StorageUnit-p_store", T, S, 0, math.Inf(1)); err != nil {
		return err
	}
	if p.soc, err = m.AddVariables("StorageUnit-state_of_charge", T, S, 0, math.Inf(1)); err != nil {
		return err
	}
	if p.storePNom, err = m.AddVariables("StorageUnit-p_nom", 1, nExt, 0, math.Inf(1)); err != nil {
		return err
	}

	var dispatchUpper, chargeUpper, socUpper, balance []optimize.Constraint
	obj := optimize.Expr{}
	for s, su := range n.StorageUnits {
		if k := p.storeExt[s]; k >= 0 {
			pnom := p.storePNom.At(0, k)
			if err := m.SetBounds(pnom, su.PNomMin, su.PNomMax); err != nil {
				return fmt.Errorf("storage unit %q: %w", su.Name, err)
			}
			obj = obj.Add(pnom, su.CapitalCost)
			for t := 0; t < T; t++ {
				dispatchUpper = append(dispatchUpper, optimize.LessEq(
					optimize.Sum(p.storeDispatch.At(t, s)).Add(pnom, -1), 0))
				chargeUpper = append(chargeUpper, optimize.LessEq(
					optimize.Sum(p.storeCharge.At(t, s)).Add(pnom, -1), 0))
				socUpper = append(socUpper, optimize.LessEq(
					optimize.Sum(p.soc.At(t, s)).Add(pnom, -su.MaxHours), 0))
			}
		} else {
			for t := 0; t < T; t++ {
				bounds := []struct {
					v  optimize.Var
					hi float64
				}{
					{p.storeDispatch.At(t, s), su.PNom},
					{p.storeCharge.At(t, s), su.PNom},
					{p.soc.At(t, s), su.MaxHours * su.PNom},
				}
				for _, b := range bounds {
					if err := m.SetBounds(b.v, 0, b.hi); err != nil {
						return fmt.Errorf("storage unit %q: %w", su.Name, err)
					}
				}
			}
		}

		for t := 0; t < T; t++ {
			w := n.ObjectiveWeightings[t]
			obj = obj.Add(p.storeDispatch.At(t, s), w*su.MarginalCost)

			// soc[t] = (1-loss)^w soc[t-1] + w·(η_store·p_store - p_dispatch/η_dispatch)
			e := optimize.Sum(p.soc.At(t, s)).
				Add(p.storeCharge.At(t, s), -w*su.EfficiencyStore).
				Add(p.storeDispatch.At(t, s), w/su.EfficiencyDispatch)
			keep := math.Pow(1-su.StandingLoss, w)
			rhs := 0.0
			switch {
			case t > 0:
				e = e.Add(p.soc.At(t-1, s), -keep)
			case su.CyclicStateOfCharge:
				e = e.Add(p.soc.At(T-1, s), -keep)
			default:
				rhs = keep * su.StateOfChargeInitial
			}
			balance = append(balance, optimize.Eq(e, rhs))
		}
	}

	families := []struct {
		name string
		cons []optimize.Constraint
	}{
		{"StorageUnit-ext-p_dispatch-upper", dispatchUpper},
		{"StorageUnit-ext-p_store-upper", chargeUpper},
		{"StorageUnit-ext-state_of_charge-upper", socUpper},
	}
	for _, f := range families {
		if _, err := m.AddConstraints(f.name, f.cons); err != nil {
			return err
		}
	}
	if p.energyBalance, err = m.AddConstraints("StorageUnit-energy_balance", orderBySnapshot(balance, T, S)); err != nil {
		return err
	}
	m.AddObjective(obj)
	return nil
}

// orderBySnapshot reorders rows built unit by unit into t·S + s order.
func orderBySnapshot(rows []optimize.Constraint, T, S int) []optimize.Constraint {
	out := make([]optimize.Constraint, len(rows))
	for s := 0; s < S; s++ {
		for t := 0; t < T; t++ {
			out[t*S+s] = rows[s*T+t]
		}
	}
	return out
}

// buildNodalBalance adds Σp + Σ(p_dispatch - p_store) = load for every
// snapshot.
func buildNodalBalance(p *Problem) error {
	n := p.network
	var cons []optimize.Constraint
	for t := range n.Snapshots {
		e := optimize.Expr{}
		for g := range n.Generators {
			e = e.Add(p.genP.At(t, g), 1)
		}
		for s := range n.StorageUnits {
			e = e.Add(p.storeDispatch.At(t, s), 1).Add(p.storeCharge.At(t, s), -1)
		}
		cons = append(cons, optimize.Eq(e, n.Demand(t)))
	}
	var err error
	p.nodalBalance, err = p.model.AddConstraints("Bus-nodal_balance", cons)
	return err
}
