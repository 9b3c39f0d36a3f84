// Package root runs the dispatch pipeline: settings to network, base model,
// reserve augmentation, solve and report.
package root

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/dispatch"
	"github.com/ohowland/cgc_reserve/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_reserve/internal/pkg/dispatch/reserve"
	"github.com/ohowland/cgc_reserve/internal/pkg/msg"
	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/ohowland/cgc_reserve/internal/pkg/results"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/rs/zerolog/log"
)

// Run is one completed pipeline invocation.
type Run struct {
	ID       uuid.UUID         `json:"id"`
	Created  time.Time         `json:"created"`
	Settings settings.Settings `json:"settings"`
	Method   string            `json:"method"`
	Elapsed  time.Duration     `json:"elapsed"`
	Report   results.Report    `json:"report"`
}

// RunError is published when a run fails.
type RunError struct {
	ID       uuid.UUID         `json:"id"`
	Settings settings.Settings `json:"settings"`
	Err      string            `json:"error"`
}

// System is the root node of the dispatch pipeline. It publishes
// msg.RunCompleted and msg.RunFailed for every run.
type System struct {
	pid       uuid.UUID
	publisher *msg.PubSub
	options   optimize.Options
}

func New(opts optimize.Options) (*System, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &System{
		pid:       pid,
		publisher: msg.NewPublisher(pid),
		options:   opts,
	}, nil
}

func (s *System) PID() uuid.UUID { return s.pid }

// Publisher returns the pub/sub carrying run events.
func (s *System) Publisher() *msg.PubSub { return s.publisher }

// Run builds and solves the model described by set. Solver failures are
// returned wrapped; match them with errors.Is against optimize.ErrInfeasible
// and optimize.ErrUnbounded.
func (s *System) Run(ctx context.Context, set settings.Settings) (Run, error) {
	id := uuid.New()
	run, err := s.run(ctx, id, set)
	if err != nil {
		log.Warn().Err(err).Str("run", id.String()).Msg("[System] run failed")
		s.publisher.Publish(msg.RunFailed, RunError{ID: id, Settings: set, Err: err.Error()})
		return Run{}, err
	}
	log.Info().
		Str("run", id.String()).
		Float64("reserve", set.Reserve).
		Float64("objective", run.Report.Objective).
		Msg("[System] run completed")
	s.publisher.Publish(msg.RunCompleted, run)
	return run, nil
}

func (s *System) run(ctx context.Context, id uuid.UUID, set settings.Settings) (Run, error) {
	n, err := network.Build(set)
	if err != nil {
		return Run{}, fmt.Errorf("build network: %w", err)
	}
	p, err := lpdispatch.New(n)
	if err != nil {
		return Run{}, fmt.Errorf("build dispatch: %w", err)
	}
	r, err := reserve.Augment(p.Model(), p, set.Reserve)
	if err != nil {
		return Run{}, err
	}
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	sol, err := dispatch.Solve(p.Model(), s.options)
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:       id,
		Created:  time.Now().UTC(),
		Settings: set.Clone(),
		Method:   sol.Method.String(),
		Elapsed:  sol.Elapsed,
		Report:   results.NewReport(Collect(p, r, sol)),
	}, nil
}

// Collect reads the solution of an augmented model into a results.Solved.
func Collect(p *lpdispatch.Problem, r *reserve.Reserve, sol *optimize.Solution) results.Solved {
	n := p.Network()
	T, G, S := len(n.Snapshots), len(n.Generators), len(n.StorageUnits)
	out := results.Solved{
		Network:          n,
		Objective:        sol.Objective,
		GeneratorP:       grid(T, G, func(t, g int) float64 { return p.GeneratorP(sol, t, g) }),
		GeneratorR:       grid(T, G, func(t, g int) float64 { return r.GeneratorReserve(sol, t, g) }),
		StorageP:         grid(T, S, func(t, s int) float64 { return p.StorageP(sol, t, s) }),
		StorageR:         grid(T, S, func(t, s int) float64 { return r.StorageReserve(sol, t, s) }),
		StorageSoC:       grid(T, S, func(t, s int) float64 { return p.StorageSoC(sol, t, s) }),
		GeneratorPNomOpt: make([]float64, G),
		StoragePNomOpt:   make([]float64, S),
		NodalPrice:       make([]float64, T),
		ReservePrice:     make([]float64, T),
	}
	for g := range out.GeneratorPNomOpt {
		out.GeneratorPNomOpt[g] = p.GeneratorPNomOpt(sol, g)
	}
	for s := range out.StoragePNomOpt {
		out.StoragePNomOpt[s] = p.StoragePNomOpt(sol, s)
	}
	for t := 0; t < T; t++ {
		out.NodalPrice[t] = p.NodalPrice(sol, t)
		out.ReservePrice[t] = r.MarginPrice(sol, t)
	}
	return out
}

func grid(rows, cols int, f func(i, j int) float64) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = f(i, j)
		}
	}
	return out
}
