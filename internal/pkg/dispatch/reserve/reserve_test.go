package reserve

import (
	"errors"
	"math"
	"testing"

	"github.com/ohowland/cgc_reserve/internal/pkg/dispatch"
	"github.com/ohowland/cgc_reserve/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"gotest.tools/v3/assert"
)

const tol = 1e-6

func build(t *testing.T, s settings.Settings) *lpdispatch.Problem {
	t.Helper()
	n, err := network.Build(s)
	assert.NilError(t, err)
	p, err := lpdispatch.New(n)
	assert.NilError(t, err)
	return p
}

func solve(t *testing.T, s settings.Settings, method optimize.Method) (*lpdispatch.Problem, *Reserve, *optimize.Solution) {
	t.Helper()
	p := build(t, s)
	r, err := Augment(p.Model(), p, s.Reserve)
	assert.NilError(t, err)
	sol, err := dispatch.Solve(p.Model(), optimize.Options{Method: method})
	assert.NilError(t, err)
	return p, r, sol
}

func TestZeroReserveMatchesBaseline(t *testing.T) {
	s := settings.Default()

	base := build(t, s)
	baseSol, err := dispatch.Solve(base.Model(), optimize.Options{})
	assert.NilError(t, err)

	p, r, sol := solve(t, s, optimize.Bounded)
	assert.Assert(t, math.Abs(sol.Objective-baseSol.Objective) < tol,
		"objective %v, baseline %v", sol.Objective, baseSol.Objective)
	for ti := range p.Network().Snapshots {
		assert.Assert(t, math.Abs(r.Total(sol, ti)) < tol)
	}
}

func TestReserveRequirementHonoured(t *testing.T) {
	s := settings.Default()
	_, _, baseSol := solve(t, s, optimize.Bounded)

	p, r, sol := solve(t, s.WithReserve(5), optimize.Bounded)
	assert.Assert(t, sol.Objective >= baseSol.Objective-tol)

	n := p.Network()
	for ti := range n.Snapshots {
		assert.Assert(t, math.Abs(r.Total(sol, ti)-5) < tol, "snapshot %d: total %v", ti, r.Total(sol, ti))

		supply := 0.0
		for g, gen := range n.Generators {
			pg, rg := p.GeneratorP(sol, ti, g), r.GeneratorReserve(sol, ti, g)
			supply += pg
			assert.Assert(t, rg >= -tol)
			assert.Assert(t, rg <= pg+tol, "%s at %d: r %v > p %v", gen.Name, ti, rg, pg)
			bound := gen.PMaxPu[ti] * p.GeneratorPNomOpt(sol, g)
			assert.Assert(t, pg+rg <= bound+tol, "%s at %d: p+r %v > %v", gen.Name, ti, pg+rg, bound)
		}
		for su := range n.StorageUnits {
			supply += p.StorageP(sol, ti, su)
			assert.Assert(t, r.StorageReserve(sol, ti, su) <= p.StorageSoC(sol, ti, su)+tol)
		}
		assert.Assert(t, math.Abs(supply-n.Demand(ti)) < tol)
	}

	// Headroom at peak has to come from extending the fourth unit.
	assert.Assert(t, p.GeneratorPNomOpt(sol, 3) > tol)
}

func TestMethodsAgree(t *testing.T) {
	s := settings.Default().WithReserve(4)
	s.Snapshots = 6

	_, rb, bounded := solve(t, s, optimize.Bounded)
	_, rs, standard := solve(t, s, optimize.Standard)
	assert.Assert(t, math.Abs(bounded.Objective-standard.Objective) < 1e-5,
		"bounded %v, standard %v", bounded.Objective, standard.Objective)
	for ti := 0; ti < s.Snapshots; ti++ {
		assert.Assert(t, math.Abs(rb.Total(bounded, ti)-rs.Total(standard, ti)) < 1e-5)
	}
}

func TestInfeasibleWithoutHeadroom(t *testing.T) {
	s := settings.Default().WithReserve(5)
	s.Generators = s.Generators[:3]

	p := build(t, s)
	_, err := Augment(p.Model(), p, s.Reserve)
	assert.NilError(t, err)

	_, err = dispatch.Solve(p.Model(), optimize.Options{})
	assert.Assert(t, errors.Is(err, optimize.ErrInfeasible), "got %v", err)
}

func TestReserveAboveLoadIsInfeasible(t *testing.T) {
	s := settings.Default().WithReserve(50)
	s.Snapshots = 4

	p := build(t, s)
	_, err := Augment(p.Model(), p, s.Reserve)
	assert.NilError(t, err)

	_, err = dispatch.Solve(p.Model(), optimize.Options{})
	assert.Assert(t, errors.Is(err, optimize.ErrInfeasible), "got %v", err)
}

func TestAugmentTwice(t *testing.T) {
	p := build(t, settings.Default())
	_, err := Augment(p.Model(), p, 1)
	assert.NilError(t, err)

	_, err = Augment(p.Model(), p, 1)
	assert.Assert(t, errors.Is(err, optimize.ErrDuplicate), "got %v", err)
}

func TestAugmentRejectsNegativeRequirement(t *testing.T) {
	p := build(t, settings.Default())
	_, err := Augment(p.Model(), p, -1)
	assert.ErrorContains(t, err, "invalid requirement")
}

func TestFamilies(t *testing.T) {
	s := settings.Default()
	s.Snapshots = 3
	p := build(t, s)
	_, err := Augment(p.Model(), p, 2)
	assert.NilError(t, err)

	n := p.Network()
	G, S := len(n.Generators), len(n.StorageUnits)
	lens := map[string]int{}
	for _, f := range p.Model().Families() {
		lens[f.Name()] = f.Len()
	}
	assert.Equal(t, lens[Margin], 3)
	assert.Equal(t, lens[GeneratorUpper], 3*G)
	assert.Equal(t, lens[GeneratorLower], 3*G)
	assert.Equal(t, lens[StorageUpper], 3*S)
	assert.Equal(t, lens[StoragePower], 3*S)
}

func TestGeneratorPartition(t *testing.T) {
	s := settings.Default()
	s.VRES.Extendable = true
	s.Storage.Extendable = true
	p := build(t, s)

	n := p.Network()
	fixed, ext := 0, 0
	for g, gen := range n.Generators {
		_, ok := p.GeneratorCapacity(g)
		assert.Equal(t, ok, gen.PNomExtendable, gen.Name)
		if ok {
			ext++
		} else {
			fixed++
		}
	}
	assert.Equal(t, fixed+ext, len(n.Generators))
	assert.Equal(t, ext, 2)

	_, ok := p.StorageCapacity(0)
	assert.Assert(t, ok)
}

func TestExtendableStorageCarriesReserve(t *testing.T) {
	s := settings.Default().WithReserve(3)
	s.Snapshots = 4
	s.Generators = s.Generators[:3]
	s.Storage = settings.Asset{Extendable: true, CapitalCost: 1}

	p, r, sol := solve(t, s, optimize.Bounded)
	n := p.Network()
	for ti := range n.Snapshots {
		assert.Assert(t, math.Abs(r.Total(sol, ti)-3) < tol)
		rs := r.StorageReserve(sol, ti, 0)
		assert.Assert(t, rs <= p.StorageSoC(sol, ti, 0)+tol)
		assert.Assert(t, rs <= p.StoragePNomOpt(sol, 0)+tol)
	}
	assert.Assert(t, p.StoragePNomOpt(sol, 0) > tol)
}
