// Package optimize holds a small linear programming layer: named blocks of
// variables, named families of constraints, a minimisation objective and the
// solvers that turn them into primal values and duals.
package optimize

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDuplicate      = errors.New("optimize: duplicate name")
	ErrBounds         = errors.New("optimize: invalid bounds")
	ErrEmpty          = errors.New("optimize: model has no variables")
	ErrInfeasible     = errors.New("optimize: problem is infeasible")
	ErrUnbounded      = errors.New("optimize: problem is unbounded")
	ErrSingular       = errors.New("optimize: singular constraint matrix")
	ErrIterationLimit = errors.New("optimize: iteration limit reached")
	ErrTooLarge       = errors.New("optimize: problem too large for method")
)

// Var is a column of the model.
type Var int

// Sense of a constraint row.
type Sense int

const (
	LessEqual Sense = iota
	Equal
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case Equal:
		return "=="
	case GreaterEqual:
		return ">="
	}
	return "?"
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression of model variables.
type Expr struct {
	Terms []Term
	Const float64
}

// Sum returns the expression adding all vars with coefficient 1.
func Sum(vars ...Var) Expr {
	e := Expr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{v, 1})
	}
	return e
}

// Add returns a copy of e with coef·v appended.
func (e Expr) Add(v Var, coef float64) Expr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+1)
	copy(terms, e.Terms)
	return Expr{Terms: append(terms, Term{v, coef}), Const: e.Const}
}

// AddConst returns a copy of e shifted by c.
func (e Expr) AddConst(c float64) Expr {
	terms := make([]Term, len(e.Terms))
	copy(terms, e.Terms)
	return Expr{Terms: terms, Const: e.Const + c}
}

// Plus returns e + o.
func (e Expr) Plus(o Expr) Expr {
	terms := make([]Term, 0, len(e.Terms)+len(o.Terms))
	terms = append(terms, e.Terms...)
	terms = append(terms, o.Terms...)
	return Expr{Terms: terms, Const: e.Const + o.Const}
}

// Scale returns k·e.
func (e Expr) Scale(k float64) Expr {
	terms := make([]Term, len(e.Terms))
	for i, t := range e.Terms {
		terms[i] = Term{t.Var, k * t.Coef}
	}
	return Expr{Terms: terms, Const: k * e.Const}
}

// Constraint is a single linear row: Expr Sense RHS.
type Constraint struct {
	Expr  Expr
	Sense Sense
	RHS   float64
}

func LessEq(e Expr, rhs float64) Constraint    { return Constraint{e, LessEqual, rhs} }
func Eq(e Expr, rhs float64) Constraint        { return Constraint{e, Equal, rhs} }
func GreaterEq(e Expr, rhs float64) Constraint { return Constraint{e, GreaterEqual, rhs} }

// VarGroup is a named rows × cols block of variables, stored row major.
type VarGroup struct {
	name       string
	rows, cols int
	first      Var
}

func (g *VarGroup) Name() string { return g.name }

func (g *VarGroup) Dims() (int, int) { return g.rows, g.cols }

// At returns the variable at row i, column j.
func (g *VarGroup) At(i, j int) Var {
	if i < 0 || i >= g.rows || j < 0 || j >= g.cols {
		panic(fmt.Sprintf("optimize: index [%d,%d] out of range for %s[%d,%d]", i, j, g.name, g.rows, g.cols))
	}
	return g.first + Var(i*g.cols+j)
}

// ConstraintFamily is a named, contiguous set of rows.
type ConstraintFamily struct {
	name  string
	first int
	n     int
}

func (f *ConstraintFamily) Name() string { return f.name }

func (f *ConstraintFamily) Len() int { return f.n }

type row struct {
	terms []Term
	sense Sense
	rhs   float64
}

// Model accumulates variables, constraints and objective terms. A Model is
// not safe for concurrent use.
type Model struct {
	lower []float64
	upper []float64
	cost  []float64
	owner []*VarGroup

	groups   map[string]*VarGroup
	families map[string]*ConstraintFamily
	order    []*ConstraintFamily
	rows     []row

	objConst float64
}

func NewModel() *Model {
	return &Model{
		groups:   make(map[string]*VarGroup),
		families: make(map[string]*ConstraintFamily),
	}
}

// NumVars returns the number of columns.
func (m *Model) NumVars() int { return len(m.lower) }

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int { return len(m.rows) }

// AddVariables registers a rows × cols block of variables sharing the bounds
// [lower, upper]. Lower bounds must be finite.
func (m *Model) AddVariables(name string, rows, cols int, lower, upper float64) (*VarGroup, error) {
	if _, ok := m.groups[name]; ok {
		return nil, fmt.Errorf("%w: variables %q", ErrDuplicate, name)
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("optimize: negative dimensions %dx%d for %q", rows, cols, name)
	}
	if err := checkBounds(lower, upper); err != nil {
		return nil, fmt.Errorf("%w: variables %q", err, name)
	}

	g := &VarGroup{name: name, rows: rows, cols: cols, first: Var(len(m.lower))}
	for k := 0; k < rows*cols; k++ {
		m.lower = append(m.lower, lower)
		m.upper = append(m.upper, upper)
		m.cost = append(m.cost, 0)
		m.owner = append(m.owner, g)
	}
	m.groups[name] = g
	return g, nil
}

// SetBounds overrides the bounds of a single variable.
func (m *Model) SetBounds(v Var, lower, upper float64) error {
	if err := checkBounds(lower, upper); err != nil {
		return fmt.Errorf("%w: %s", err, m.VarName(v))
	}
	m.lower[v] = lower
	m.upper[v] = upper
	return nil
}

// Bounds returns the bounds of v.
func (m *Model) Bounds(v Var) (float64, float64) {
	return m.lower[v], m.upper[v]
}

func checkBounds(lower, upper float64) error {
	if math.IsInf(lower, 0) || math.IsNaN(lower) || math.IsNaN(upper) || upper < lower {
		return fmt.Errorf("%w [%v, %v]", ErrBounds, lower, upper)
	}
	return nil
}

// AddConstraints registers a named family of rows.
func (m *Model) AddConstraints(name string, cons []Constraint) (*ConstraintFamily, error) {
	if _, ok := m.families[name]; ok {
		return nil, fmt.Errorf("%w: constraints %q", ErrDuplicate, name)
	}
	f := &ConstraintFamily{name: name, first: len(m.rows), n: len(cons)}
	for _, c := range cons {
		m.rows = append(m.rows, row{
			terms: m.merge(c.Expr.Terms),
			sense: c.Sense,
			rhs:   c.RHS - c.Expr.Const,
		})
	}
	m.families[name] = f
	m.order = append(m.order, f)
	return f, nil
}

// AddObjective adds e to the minimisation objective.
func (m *Model) AddObjective(e Expr) {
	for _, t := range e.Terms {
		m.cost[t.Var] += t.Coef
	}
	m.objConst += e.Const
}

// Families returns the constraint families in registration order.
func (m *Model) Families() []*ConstraintFamily {
	out := make([]*ConstraintFamily, len(m.order))
	copy(out, m.order)
	return out
}

// VarName renders v as group[i,j].
func (m *Model) VarName(v Var) string {
	if int(v) < 0 || int(v) >= len(m.owner) {
		return fmt.Sprintf("x%d", v)
	}
	g := m.owner[v]
	k := int(v - g.first)
	return fmt.Sprintf("%s[%d,%d]", g.name, k/g.cols, k%g.cols)
}

func (m *Model) rowName(i int) string {
	for _, f := range m.order {
		if i >= f.first && i < f.first+f.n {
			return fmt.Sprintf("%s[%d]", f.name, i-f.first)
		}
	}
	return fmt.Sprintf("row%d", i)
}

// merge sums repeated variables and drops zero coefficients.
func (m *Model) merge(terms []Term) []Term {
	index := make(map[Var]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.lower) {
			panic(fmt.Sprintf("optimize: unknown variable %d", t.Var))
		}
		if k, ok := index[t.Var]; ok {
			out[k].Coef += t.Coef
			continue
		}
		index[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}
