package optimize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// StandardRowLimit bounds the rows, upper bounds included, that the
// standard method accepts. Larger models are refused with ErrTooLarge.
const StandardRowLimit = 160

// solveStandard hands f to gonum's simplex in standard form:
//
//	minimise c·z  subject to  [G I; A 0] z = [h; b],  z >= 0
//
// where G holds the <= rows plus one row per finite upper bound. Duals come
// from solving the dual program, converted from general form by lp.Convert.
func solveStandard(f *form, opts Options) ([]float64, []float64, error) {
	n := len(f.cols)
	var le, eq []formRow
	for _, r := range f.rows {
		if r.eq {
			eq = append(eq, r)
		} else {
			le = append(le, r)
		}
	}
	for k, u := range f.upper {
		if !math.IsInf(u, 1) {
			le = append(le, formRow{idx: []int{k}, val: []float64{1}, rhs: u, origin: -1, sign: 1})
		}
	}

	mg, me := len(le), len(eq)
	rows, cols := mg+me, n+mg
	if rows == 0 {
		return make([]float64, n), nil, nil
	}
	if rows > StandardRowLimit {
		return nil, nil, fmt.Errorf("%w: %d rows exceed %d for the standard method", ErrTooLarge, rows, StandardRowLimit)
	}
	if rows > cols {
		return nil, nil, fmt.Errorf("%w: %d rows for %d columns", ErrSingular, rows, cols)
	}

	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)
	copy(c, f.cost)
	for i, r := range le {
		for p, k := range r.idx {
			a.Set(i, k, r.val[p])
		}
		a.Set(i, n+i, 1)
		b[i] = r.rhs
	}
	for i, r := range eq {
		for p, k := range r.idx {
			a.Set(mg+i, k, r.val[p])
		}
		b[mg+i] = r.rhs
	}

	_, z, err := lp.Simplex(c, a, b, opts.Tolerance, nil)
	if err != nil {
		return nil, nil, mapLPError(err)
	}
	x := z[:n]

	if !opts.Duals {
		return x, nil, nil
	}
	y, err := standardDuals(c, a, b, opts.Tolerance)
	if err != nil {
		return nil, nil, fmt.Errorf("dual program: %w", err)
	}

	// Rows of f are split into le and eq above; reassemble in f's order.
	duals := make([]float64, len(f.rows))
	li, ei := 0, 0
	for i, r := range f.rows {
		if r.eq {
			duals[i] = y[mg+ei]
			ei++
		} else {
			duals[i] = y[li]
			li++
		}
	}
	return x, duals, nil
}

// standardDuals solves max b·y subject to Aᵀy <= c with y free.
func standardDuals(c []float64, a *mat.Dense, b []float64, tol float64) ([]float64, error) {
	m, _ := a.Dims()
	negB := make([]float64, m)
	for i, v := range b {
		negB[i] = -v
	}
	var at mat.Dense
	at.CloneFrom(a.T())

	cNew, aNew, bNew := lp.Convert(negB, &at, c, nil, nil)
	_, z, err := lp.Simplex(cNew, aNew, bNew, tol, nil)
	if err != nil {
		return nil, mapLPError(err)
	}
	y := make([]float64, m)
	for i := range y {
		y[i] = z[i] - z[m+i]
	}
	return y, nil
}

func mapLPError(err error) error {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return fmt.Errorf("%w: %v", ErrInfeasible, err)
	case errors.Is(err, lp.ErrUnbounded):
		return fmt.Errorf("%w: %v", ErrUnbounded, err)
	case errors.Is(err, lp.ErrSingular), errors.Is(err, lp.ErrZeroRow), errors.Is(err, lp.ErrZeroColumn):
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return err
}
