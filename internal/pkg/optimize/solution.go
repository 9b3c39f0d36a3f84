package optimize

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Method selects the simplex implementation.
type Method int

const (
	// Bounded is the dense bounded-variable tableau simplex.
	Bounded Method = iota
	// Standard uses gonum's standard form simplex. Upper bounds become rows
	// and models above StandardRowLimit rows are refused. It serves as a
	// cross-check of Bounded on small models.
	Standard
)

func (m Method) String() string {
	if m == Standard {
		return "standard"
	}
	return "bounded"
}

// ParseMethod reads a Method from its String form.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "bounded":
		return Bounded, nil
	case "standard":
		return Standard, nil
	}
	return Bounded, fmt.Errorf("optimize: unknown method %q", s)
}

const (
	DefaultTolerance            = 1e-9
	DefaultFeasibilityTolerance = 1e-7
)

type Options struct {
	Method               Method
	Tolerance            float64
	FeasibilityTolerance float64
	MaxIterations        int
	// Duals requests the constraint duals alongside the primal solution.
	Duals bool
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.FeasibilityTolerance <= 0 {
		o.FeasibilityTolerance = DefaultFeasibilityTolerance
	}
	return o
}

// Solution holds primal values for every model variable and, when requested,
// a dual for every row. A dual is the derivative of the optimal objective
// with respect to the row's right hand side.
type Solution struct {
	Objective float64
	Method    Method
	Elapsed   time.Duration

	values []float64
	duals  []float64
}

// Value returns the solved value of v.
func (s *Solution) Value(v Var) float64 {
	return s.values[v]
}

// At returns the solved value of g[i,j].
func (s *Solution) At(g *VarGroup, i, j int) float64 {
	return s.values[g.At(i, j)]
}

// Eval returns the value of e at the solution.
func (s *Solution) Eval(e Expr) float64 {
	v := e.Const
	for _, t := range e.Terms {
		v += t.Coef * s.values[t.Var]
	}
	return v
}

// HasDuals reports whether duals were computed.
func (s *Solution) HasDuals() bool {
	return s.duals != nil
}

// Dual returns the dual of row i of f, or 0 when duals were not requested.
func (s *Solution) Dual(f *ConstraintFamily, i int) float64 {
	if s.duals == nil {
		return 0
	}
	if i < 0 || i >= f.n {
		panic(fmt.Sprintf("optimize: row %d out of range for %s[%d]", i, f.name, f.n))
	}
	return s.duals[f.first+i]
}

// Duals returns every dual of f.
func (s *Solution) Duals(f *ConstraintFamily) []float64 {
	out := make([]float64, f.n)
	for i := range out {
		out[i] = s.Dual(f, i)
	}
	return out
}

// Solve minimises the objective subject to every registered constraint.
func (m *Model) Solve(opts Options) (*Solution, error) {
	opts = opts.withDefaults()
	if len(m.lower) == 0 {
		return nil, ErrEmpty
	}
	start := time.Now()

	f, err := m.presolve(opts.FeasibilityTolerance)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int("vars", len(m.lower)).
		Int("rows", len(m.rows)).
		Int("reducedVars", len(f.cols)).
		Int("reducedRows", len(f.rows)).
		Str("method", opts.Method.String()).
		Msg("[Optimize] presolved")

	var x, y []float64
	switch opts.Method {
	case Standard:
		x, y, err = solveStandard(f, opts)
	default:
		x, y, err = solveBounded(f, opts)
	}
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(m.lower))
	copy(values, m.lower)
	for k, v := range f.cols {
		values[v] += x[k]
	}

	sol := &Solution{Method: opts.Method, values: values}
	sol.Objective = m.objConst
	for j, c := range m.cost {
		sol.Objective += c * values[j]
	}
	if opts.Duals {
		sol.duals = make([]float64, len(m.rows))
		for i, r := range f.rows {
			if y != nil {
				sol.duals[r.origin] = r.sign * y[i]
			}
		}
	}
	sol.Elapsed = time.Since(start)

	if worst, at := m.violation(values); worst > 1e3*opts.FeasibilityTolerance {
		log.Warn().Float64("violation", worst).Str("row", m.rowName(at)).Msg("[Optimize] solution violates a row")
	}
	return sol, nil
}

// violation returns the largest row violation of values and the row it
// occurs at.
func (m *Model) violation(values []float64) (float64, int) {
	worst, at := 0.0, -1
	for i, r := range m.rows {
		lhs := 0.0
		for _, t := range r.terms {
			lhs += t.Coef * values[t.Var]
		}
		var v float64
		switch r.sense {
		case LessEqual:
			v = lhs - r.rhs
		case GreaterEqual:
			v = r.rhs - lhs
		case Equal:
			v = lhs - r.rhs
			if v < 0 {
				v = -v
			}
		}
		if v > worst {
			worst, at = v, i
		}
	}
	return worst, at
}
