// Package lpdispatch builds the linear optimal power flow of a single bus
// network: generator and storage dispatch, extendable capacities, storage
// energy balance and the nodal balance.
package lpdispatch

import (
	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/rs/zerolog/log"
)

// Problem is the base dispatch model of one network.
type Problem struct {
	pid     uuid.UUID
	network *network.Network
	model   *optimize.Model

	genP    *optimize.VarGroup
	genPNom *optimize.VarGroup
	genExt  []int

	storeDispatch *optimize.VarGroup
	storeCharge   *optimize.VarGroup
	soc           *optimize.VarGroup
	storePNom     *optimize.VarGroup
	storeExt      []int

	nodalBalance  *optimize.ConstraintFamily
	energyBalance *optimize.ConstraintFamily
}

// New registers the base dispatch model of n.
func New(n *network.Network) (*Problem, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	p := &Problem{
		pid:     pid,
		network: n,
		model:   optimize.NewModel(),
	}

	if err := buildGenerators(p); err != nil {
		return nil, err
	}
	if err := buildStorage(p); err != nil {
		return nil, err
	}
	if err := buildNodalBalance(p); err != nil {
		return nil, err
	}

	log.Debug().
		Str("pid", pid.String()).
		Int("snapshots", len(n.Snapshots)).
		Int("vars", p.model.NumVars()).
		Int("rows", p.model.NumConstraints()).
		Msg("[LP Dispatch] model built")
	return p, nil
}

func (p *Problem) PID() uuid.UUID { return p.pid }

// Model returns the underlying model, to be extended and solved.
func (p *Problem) Model() *optimize.Model { return p.model }

func (p *Problem) Network() *network.Network { return p.network }

func (p *Problem) GeneratorDispatch() *optimize.VarGroup { return p.genP }

func (p *Problem) GeneratorCapacity(g int) (optimize.Var, bool) {
	if k := p.genExt[g]; k >= 0 {
		return p.genPNom.At(0, k), true
	}
	return 0, false
}

func (p *Problem) StorageDispatch() *optimize.VarGroup { return p.storeDispatch }

func (p *Problem) StorageCharge() *optimize.VarGroup { return p.storeCharge }

func (p *Problem) StateOfCharge() *optimize.VarGroup { return p.soc }

func (p *Problem) StorageCapacity(s int) (optimize.Var, bool) {
	if k := p.storeExt[s]; k >= 0 {
		return p.storePNom.At(0, k), true
	}
	return 0, false
}

// NodalBalance is the supply equals demand family, one row per snapshot.
func (p *Problem) NodalBalance() *optimize.ConstraintFamily { return p.nodalBalance }

// EnergyBalance is the storage state of charge family, indexed
// t·storageUnits + s.
func (p *Problem) EnergyBalance() *optimize.ConstraintFamily { return p.energyBalance }

// GeneratorP returns the dispatch of generator g at snapshot t.
func (p *Problem) GeneratorP(sol *optimize.Solution, t, g int) float64 {
	return sol.At(p.genP, t, g)
}

// GeneratorPNomOpt returns the optimised capacity of generator g, or its
// fixed capacity.
func (p *Problem) GeneratorPNomOpt(sol *optimize.Solution, g int) float64 {
	if v, ok := p.GeneratorCapacity(g); ok {
		return sol.Value(v)
	}
	return p.network.Generators[g].PNom
}

// StorageP returns the net output p_dispatch - p_store of storage unit s.
func (p *Problem) StorageP(sol *optimize.Solution, t, s int) float64 {
	return sol.At(p.storeDispatch, t, s) - sol.At(p.storeCharge, t, s)
}

func (p *Problem) StorageSoC(sol *optimize.Solution, t, s int) float64 {
	return sol.At(p.soc, t, s)
}

func (p *Problem) StoragePNomOpt(sol *optimize.Solution, s int) float64 {
	if v, ok := p.StorageCapacity(s); ok {
		return sol.Value(v)
	}
	return p.network.StorageUnits[s].PNom
}

// NodalPrice returns the nodal balance dual at snapshot t.
func (p *Problem) NodalPrice(sol *optimize.Solution, t int) float64 {
	return sol.Dual(p.nodalBalance, t)
}
