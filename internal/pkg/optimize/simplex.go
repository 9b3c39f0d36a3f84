package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const blandAfter = 50

// tableau is a dense bounded-variable simplex tableau. Columns are the form's
// structural columns followed by one slack per <= row and one artificial per
// row that could not start with its slack in the basis.
type tableau struct {
	m, n    int
	t       *mat.Dense
	beta    []float64
	basis   []int
	pos     []int
	atUpper []bool
	upper   []float64
	art     []bool
	d       []float64

	unit  []int
	sigma []float64

	tol     float64
	feasTol float64
}

func newTableau(f *form, tol, feasTol float64) *tableau {
	nStruct := len(f.cols)
	m := len(f.rows)

	nSlack, nArt := 0, 0
	for _, r := range f.rows {
		if !r.eq {
			nSlack++
		}
		if r.eq || r.rhs < 0 {
			nArt++
		}
	}
	n := nStruct + nSlack + nArt

	tb := &tableau{
		m:       m,
		n:       n,
		t:       mat.NewDense(max(m, 1), max(n, 1), nil),
		beta:    make([]float64, m),
		basis:   make([]int, m),
		pos:     make([]int, n),
		atUpper: make([]bool, n),
		upper:   make([]float64, n),
		art:     make([]bool, n),
		d:       make([]float64, n),
		unit:    make([]int, m),
		sigma:   make([]float64, m),
		tol:     tol,
		feasTol: feasTol,
	}
	copy(tb.upper, f.upper)
	for j := nStruct; j < n; j++ {
		tb.upper[j] = math.Inf(1)
	}
	for j := range tb.pos {
		tb.pos[j] = -1
	}

	slack, artificial := nStruct, nStruct+nSlack
	for i, r := range f.rows {
		sigma := 1.0
		if r.rhs < 0 {
			sigma = -1
		}
		row := tb.t.RawRowView(i)
		for p, k := range r.idx {
			row[k] += sigma * r.val[p]
		}
		tb.sigma[i] = sigma
		tb.beta[i] = sigma * r.rhs

		if !r.eq {
			row[slack] = sigma
			if sigma > 0 {
				tb.unit[i] = slack
			}
			slack++
		}
		if r.eq || sigma < 0 {
			row[artificial] = 1
			tb.art[artificial] = true
			tb.unit[i] = artificial
			artificial++
		}
		tb.basis[i] = tb.unit[i]
		tb.pos[tb.unit[i]] = i
	}
	return tb
}

func (tb *tableau) hasArtificials() bool {
	for _, a := range tb.art {
		if a {
			return true
		}
	}
	return false
}

// price sets d to the reduced costs of cost under the current basis.
func (tb *tableau) price(cost []float64) {
	copy(tb.d, cost)
	for r := 0; r < tb.m; r++ {
		if cb := cost[tb.basis[r]]; cb != 0 {
			floats.AddScaled(tb.d, -cb, tb.t.RawRowView(r)[:tb.n])
		}
	}
}

// entering picks a nonbasic column whose move improves the objective, and the
// direction of that move.
func (tb *tableau) entering(allowArt, bland bool) (int, float64) {
	best, dir, score := -1, 0.0, 0.0
	for j := 0; j < tb.n; j++ {
		if tb.pos[j] >= 0 || (tb.art[j] && !allowArt) {
			continue
		}
		var s, dj float64
		switch {
		case !tb.atUpper[j] && tb.d[j] < -tb.tol && tb.upper[j] > 0:
			s, dj = 1, -tb.d[j]
		case tb.atUpper[j] && tb.d[j] > tb.tol:
			s, dj = -1, tb.d[j]
		default:
			continue
		}
		if bland {
			return j, s
		}
		if dj > score {
			best, dir, score = j, s, dj
		}
	}
	return best, dir
}

// ratio returns the blocking row for moving column j in direction dir, or
// -1 with flip set when j reaches its own opposite bound first.
func (tb *tableau) ratio(j int, dir float64, bland bool) (r int, step float64, flip bool) {
	r, step = -1, math.Inf(1)
	var pivot float64
	for i := 0; i < tb.m; i++ {
		alpha := dir * tb.t.At(i, j)
		var limit float64
		switch {
		case alpha > tb.tol:
			limit = tb.beta[i] / alpha
		case alpha < -tb.tol:
			ub := tb.upper[tb.basis[i]]
			if math.IsInf(ub, 1) {
				continue
			}
			limit = (ub - tb.beta[i]) / -alpha
		default:
			continue
		}
		if limit < 0 {
			limit = 0
		}
		better := limit < step-tb.tol
		if !better && limit <= step+tb.tol && r >= 0 {
			if bland {
				better = tb.basis[i] < tb.basis[r]
			} else {
				better = math.Abs(alpha) > pivot
			}
		}
		if better {
			r, step, pivot = i, limit, math.Abs(alpha)
		}
	}
	if u := tb.upper[j]; !math.IsInf(u, 1) && (r < 0 || u < step) {
		return -1, u, true
	}
	return r, step, false
}

func (tb *tableau) value(j int) float64 {
	if p := tb.pos[j]; p >= 0 {
		return tb.beta[p]
	}
	if tb.atUpper[j] {
		return tb.upper[j]
	}
	return 0
}

// pivot makes column j basic in row r. The leaving column goes to the bound
// it was driven to.
func (tb *tableau) pivot(r, j int, entering float64) {
	leaving := tb.basis[r]
	alpha := tb.t.At(r, j)

	tb.atUpper[leaving] = tb.beta[r] >= tb.upper[leaving]-tb.feasTol && !math.IsInf(tb.upper[leaving], 1)
	tb.pos[leaving] = -1
	tb.beta[r] = entering
	tb.basis[r] = j
	tb.pos[j] = r
	tb.atUpper[j] = false

	pr := tb.t.RawRowView(r)[:tb.n]
	floats.Scale(1/alpha, pr)
	pr[j] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		ri := tb.t.RawRowView(i)[:tb.n]
		if f := ri[j]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[j] = 0
		}
	}
	if f := tb.d[j]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
		tb.d[j] = 0
	}
}

// run iterates until no improving column remains.
func (tb *tableau) run(allowArt bool, maxIter int) error {
	degenerate := 0
	for it := 0; it < maxIter; it++ {
		bland := degenerate > blandAfter
		j, dir := tb.entering(allowArt, bland)
		if j < 0 {
			return nil
		}
		r, step, flip := tb.ratio(j, dir, bland)
		if r < 0 && !flip {
			return ErrUnbounded
		}
		if step <= tb.tol {
			degenerate++
		} else {
			degenerate = 0
		}

		start := tb.value(j)
		for i := 0; i < tb.m; i++ {
			if a := tb.t.At(i, j); a != 0 {
				tb.beta[i] -= dir * step * a
			}
		}
		if flip {
			tb.atUpper[j] = !tb.atUpper[j]
			continue
		}
		// The leaving variable lands exactly on the bound that blocked it.
		alpha := dir * tb.t.At(r, j)
		if alpha > 0 {
			tb.beta[r] = 0
		} else {
			tb.beta[r] = tb.upper[tb.basis[r]]
		}
		tb.pivot(r, j, start+dir*step)
	}
	return ErrIterationLimit
}

// expel pivots basic artificials out after phase one. Rows where no
// structural or slack column can replace the artificial are redundant.
func (tb *tableau) expel() {
	for r := 0; r < tb.m; r++ {
		if !tb.art[tb.basis[r]] {
			continue
		}
		best, size := -1, tb.tol
		row := tb.t.RawRowView(r)[:tb.n]
		for j, a := range row {
			if tb.pos[j] >= 0 || tb.art[j] {
				continue
			}
			if math.Abs(a) > size {
				best, size = j, math.Abs(a)
			}
		}
		if best >= 0 {
			tb.beta[r] = 0
			tb.pivot(r, best, tb.value(best))
		}
	}
}

// solveBounded runs a two phase bounded simplex on f. Duals are the
// derivatives of the optimum with respect to each row's right hand side.
func solveBounded(f *form, opts Options) ([]float64, []float64, error) {
	tb := newTableau(f, opts.Tolerance, opts.FeasibilityTolerance)
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 50 * (tb.m + tb.n + 1)
	}

	if tb.hasArtificials() {
		phase1 := make([]float64, tb.n)
		for j, a := range tb.art {
			if a {
				phase1[j] = 1
			}
		}
		tb.price(phase1)
		if err := tb.run(true, maxIter); err != nil {
			if err == ErrUnbounded {
				return nil, nil, ErrSingular
			}
			return nil, nil, err
		}
		infeasibility := 0.0
		for r := 0; r < tb.m; r++ {
			if tb.art[tb.basis[r]] {
				infeasibility += math.Abs(tb.beta[r])
			}
		}
		if infeasibility > tb.feasTol*float64(tb.m+1) {
			return nil, nil, ErrInfeasible
		}
		tb.expel()
	}

	phase2 := make([]float64, tb.n)
	copy(phase2, f.cost)
	tb.price(phase2)
	if err := tb.run(false, maxIter); err != nil {
		return nil, nil, err
	}

	x := make([]float64, len(f.cols))
	for j := range x {
		x[j] = math.Min(math.Max(tb.value(j), 0), f.upper[j])
	}
	y := make([]float64, tb.m)
	for i := range y {
		y[i] = -tb.sigma[i] * tb.d[tb.unit[i]]
	}
	return x, y, nil
}
