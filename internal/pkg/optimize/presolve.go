package optimize

import (
	"fmt"
	"math"
)

// form is the presolved problem handed to a solver:
//
//	minimise cost·x  subject to  rows,  0 <= x <= upper
//
// Every row is either <= or ==. Columns map back to model variables through
// cols, rows map back through origin and sign.
type form struct {
	cols  []Var
	cost  []float64
	upper []float64
	rows  []formRow
}

type formRow struct {
	idx    []int
	val    []float64
	eq     bool
	rhs    float64
	origin int
	sign   float64
}

// presolve shifts variables to zero lower bounds, substitutes fixed
// variables, drops empty rows and fixes empty columns at their lower bound.
func (m *Model) presolve(feasTol float64) (*form, error) {
	n := len(m.lower)
	col := make([]int, n)
	f := &form{}
	for j := 0; j < n; j++ {
		col[j] = -1
		if m.upper[j] > m.lower[j] {
			col[j] = len(f.cols)
			f.cols = append(f.cols, Var(j))
			f.cost = append(f.cost, m.cost[j])
			f.upper = append(f.upper, m.upper[j]-m.lower[j])
		}
	}

	used := make([]int, len(f.cols))
	for i, r := range m.rows {
		sign := 1.0
		if r.sense == GreaterEqual {
			sign = -1
		}
		fr := formRow{eq: r.sense == Equal, rhs: sign * r.rhs, origin: i, sign: sign}
		for _, t := range r.terms {
			fr.rhs -= sign * t.Coef * m.lower[t.Var]
			if k := col[t.Var]; k >= 0 {
				fr.idx = append(fr.idx, k)
				fr.val = append(fr.val, sign*t.Coef)
			}
		}

		if len(fr.idx) == 0 {
			if (fr.eq && math.Abs(fr.rhs) > feasTol) || (!fr.eq && fr.rhs < -feasTol) {
				return nil, fmt.Errorf("%w: %s cannot hold once fixed variables are substituted", ErrInfeasible, m.rowName(i))
			}
			continue
		}
		for _, k := range fr.idx {
			used[k]++
		}
		f.rows = append(f.rows, fr)
	}

	// Columns that appear in no row sit at whichever bound the cost prefers.
	keep := make([]int, len(f.cols))
	reduced := &form{rows: f.rows}
	for k := range f.cols {
		keep[k] = -1
		if used[k] == 0 {
			if f.cost[k] < 0 && math.IsInf(f.upper[k], 1) {
				return nil, fmt.Errorf("%w: %s decreases the objective without limit", ErrUnbounded, m.VarName(f.cols[k]))
			}
			if f.cost[k] >= 0 {
				continue
			}
		}
		keep[k] = len(reduced.cols)
		reduced.cols = append(reduced.cols, f.cols[k])
		reduced.cost = append(reduced.cost, f.cost[k])
		reduced.upper = append(reduced.upper, f.upper[k])
	}
	for i := range reduced.rows {
		for p, k := range reduced.rows[i].idx {
			reduced.rows[i].idx[p] = keep[k]
		}
	}
	return reduced, nil
}
