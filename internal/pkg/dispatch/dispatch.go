// Package dispatch defines the contracts between the base dispatch model, the
// formulations that extend it and the solver.
package dispatch

import (
	"fmt"

	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/rs/zerolog/log"
)

// Dispatcher exposes the decision variables of a built dispatch model.
// Variable blocks are indexed [snapshot, asset] in network order.
type Dispatcher interface {
	Network() *network.Network
	GeneratorDispatch() *optimize.VarGroup
	// GeneratorCapacity returns the capacity variable of generator g, or
	// false when its capacity is fixed.
	GeneratorCapacity(g int) (optimize.Var, bool)
	StorageDispatch() *optimize.VarGroup
	StorageCharge() *optimize.VarGroup
	StateOfCharge() *optimize.VarGroup
	// StorageCapacity returns the capacity variable of storage unit s, or
	// false when its capacity is fixed.
	StorageCapacity(s int) (optimize.Var, bool)
}

// Modeler is the part of a model that formulations write to.
type Modeler interface {
	AddVariables(name string, rows, cols int, lower, upper float64) (*optimize.VarGroup, error)
	AddConstraints(name string, cons []optimize.Constraint) (*optimize.ConstraintFamily, error)
	AddObjective(e optimize.Expr)
}

// Solver solves a model.
type Solver interface {
	Solve(opts optimize.Options) (*optimize.Solution, error)
}

// Solve runs s with duals retained. Failures are returned wrapped, so
// callers can match optimize.ErrInfeasible and optimize.ErrUnbounded.
func Solve(s Solver, opts optimize.Options) (*optimize.Solution, error) {
	opts.Duals = true
	sol, err := s.Solve(opts)
	if err != nil {
		log.Error().Err(err).Str("method", opts.Method.String()).Msg("[Dispatch] solve failed")
		return nil, fmt.Errorf("dispatch: solve: %w", err)
	}
	log.Info().
		Float64("objective", sol.Objective).
		Dur("elapsed", sol.Elapsed).
		Str("method", sol.Method.String()).
		Msg("[Dispatch] solved")
	return sol, nil
}
