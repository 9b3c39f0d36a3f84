package network

import (
	"math"

	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"gonum.org/v1/gonum/floats"
)

const BusName = "bus1"

// Storage constants of the dashboard model.
const (
	StorageMaxHours        = 24
	StorageEfficiencyStore = 0.99
	StorageStandingLoss    = 0.001
)

var (
	vresColor        = "#68c900"
	storageColor     = "#c90068"
	dispatchableRamp = []string{"#0068c9", "#4d95d9", "#99c3e9", "#e6f0fa"}
	carrierColors    = map[string]string{Dispatchable: "#0068c9", VRE: vresColor, Electricity: storageColor}
	carrierOrder     = []string{Dispatchable, VRE, Electricity}
)

// Constant returns a series of n copies of v.
func Constant(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// DemandProfile returns sin(t/12·π)+3.5 for t = 1..n, normalised to its
// maximum and scaled to peak.
func DemandProfile(n int, peak float64) []float64 {
	p := make([]float64, n)
	if n == 0 {
		return p
	}
	for i := range p {
		t := float64(i + 1)
		p[i] = math.Sin(t/12*math.Pi) + 3.5
	}
	floats.Scale(peak/floats.Max(p), p)
	return p
}

// AvailabilityProfile returns the renewable availability 0.5·sin(t/24·π)+0.5
// for t = 1..n.
func AvailabilityProfile(n int) []float64 {
	p := make([]float64, n)
	for i := range p {
		t := float64(i + 1)
		p[i] = 0.5*math.Sin(t/24*math.Pi) + 0.5
	}
	return p
}

// Build assembles the one bus network described by s.
func Build(s settings.Settings) (*Network, error) {
	n := New()
	horizon := s.Horizon()
	if err := n.SetSnapshots(horizon); err != nil {
		return nil, err
	}
	if err := n.AddBus(Bus{Name: BusName}); err != nil {
		return nil, err
	}
	for _, c := range carrierOrder {
		n.AddCarrier(Carrier{Name: c, Color: carrierColors[c]})
	}

	err := n.AddLoad(Load{
		Name: "Load",
		Bus:  BusName,
		PSet: DemandProfile(horizon, s.LoadMax),
	})
	if err != nil {
		return nil, err
	}

	for i, g := range s.Generators {
		err := n.AddGenerator(Generator{
			Name:           g.Name,
			Bus:            BusName,
			Carrier:        Dispatchable,
			Color:          dispatchableRamp[i%len(dispatchableRamp)],
			PNom:           g.PNom,
			PNomExtendable: g.Extendable,
			MarginalCost:   g.MarginalCost,
			CapitalCost:    g.CapitalCost,
		})
		if err != nil {
			return nil, err
		}
	}

	err = n.AddGenerator(Generator{
		Name:           settings.VRESName,
		Bus:            BusName,
		Carrier:        VRE,
		Color:          vresColor,
		PNom:           s.VRES.PNom,
		PNomExtendable: s.VRES.Extendable,
		CapitalCost:    s.VRES.CapitalCost,
		PMaxPu:         AvailabilityProfile(horizon),
	})
	if err != nil {
		return nil, err
	}

	err = n.AddStorageUnit(StorageUnit{
		Name:                settings.StorageName,
		Bus:                 BusName,
		Carrier:             Electricity,
		Color:               storageColor,
		PNom:                s.Storage.PNom,
		PNomExtendable:      s.Storage.Extendable,
		CapitalCost:         s.Storage.CapitalCost,
		MaxHours:            StorageMaxHours,
		EfficiencyStore:     StorageEfficiencyStore,
		EfficiencyDispatch:  1,
		StandingLoss:        StorageStandingLoss,
		CyclicStateOfCharge: true,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}
