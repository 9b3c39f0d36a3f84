// Package network describes the single bus power system that the dispatch
// model is built from.
package network

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

var (
	ErrDuplicateName = errors.New("network: duplicate component name")
	ErrUnknownBus    = errors.New("network: unknown bus")
	ErrProfileLength = errors.New("network: profile length does not match snapshots")
)

// Carriers label asset classes for grouping and colouring.
const (
	Dispatchable = "Dispatchable"
	VRE          = "VRE"
	Electricity  = "Electricity"
)

type Bus struct {
	Name string `json:"name"`
}

type Carrier struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Load is a fixed demand series at a bus.
type Load struct {
	Name string    `json:"name"`
	Bus  string    `json:"bus"`
	PSet []float64 `json:"p_set"`
}

// Generator is a dispatchable or variable renewable unit. PMaxPu scales the
// nominal capacity into a per snapshot dispatch ceiling.
type Generator struct {
	Name           string    `json:"name"`
	Bus            string    `json:"bus"`
	Carrier        string    `json:"carrier"`
	Color          string    `json:"color"`
	PNom           float64   `json:"p_nom"`
	PNomExtendable bool      `json:"p_nom_extendable"`
	PNomMin        float64   `json:"p_nom_min"`
	PNomMax        float64   `json:"p_nom_max"`
	MarginalCost   float64   `json:"marginal_cost"`
	CapitalCost    float64   `json:"capital_cost"`
	PMinPu         float64   `json:"p_min_pu"`
	PMaxPu         []float64 `json:"p_max_pu"`
}

// StorageUnit is a battery-like asset with a state of charge.
type StorageUnit struct {
	Name                 string  `json:"name"`
	Bus                  string  `json:"bus"`
	Carrier              string  `json:"carrier"`
	Color                string  `json:"color"`
	PNom                 float64 `json:"p_nom"`
	PNomExtendable       bool    `json:"p_nom_extendable"`
	PNomMin              float64 `json:"p_nom_min"`
	PNomMax              float64 `json:"p_nom_max"`
	MarginalCost         float64 `json:"marginal_cost"`
	CapitalCost          float64 `json:"capital_cost"`
	MaxHours             float64 `json:"max_hours"`
	EfficiencyStore      float64 `json:"efficiency_store"`
	EfficiencyDispatch   float64 `json:"efficiency_dispatch"`
	StandingLoss         float64 `json:"standing_loss"`
	CyclicStateOfCharge  bool    `json:"cyclic_state_of_charge"`
	StateOfChargeInitial float64 `json:"state_of_charge_initial"`
}

// Network is a set of components attached to buses over ordered snapshots.
type Network struct {
	ID                  uuid.UUID     `json:"id"`
	Snapshots           []float64     `json:"snapshots"`
	ObjectiveWeightings []float64     `json:"objective_weightings"`
	GeneratorWeightings []float64     `json:"generator_weightings"`
	Buses               []Bus         `json:"buses"`
	Carriers            []Carrier     `json:"carriers"`
	Generators          []Generator   `json:"generators"`
	StorageUnits        []StorageUnit `json:"storage_units"`
	Loads               []Load        `json:"loads"`

	names map[string]bool
}

func New() *Network {
	return &Network{
		ID:    uuid.New(),
		names: make(map[string]bool),
	}
}

// SetSnapshots sets snapshots 1..n. Objective weightings are 1 and generator
// weightings scale the horizon to a year.
func (n *Network) SetSnapshots(count int) error {
	if count < 1 {
		return fmt.Errorf("network: %d snapshots", count)
	}
	n.Snapshots = make([]float64, count)
	n.ObjectiveWeightings = make([]float64, count)
	n.GeneratorWeightings = make([]float64, count)
	for t := range n.Snapshots {
		n.Snapshots[t] = float64(t + 1)
		n.ObjectiveWeightings[t] = 1
		n.GeneratorWeightings[t] = 8760 / float64(count)
	}
	return nil
}

func (n *Network) claim(name string) error {
	if n.names[name] {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	n.names[name] = true
	return nil
}

func (n *Network) hasBus(name string) bool {
	for _, b := range n.Buses {
		if b.Name == name {
			return true
		}
	}
	return false
}

func (n *Network) AddBus(b Bus) error {
	if n.hasBus(b.Name) {
		return fmt.Errorf("%w: bus %q", ErrDuplicateName, b.Name)
	}
	n.Buses = append(n.Buses, b)
	return nil
}

func (n *Network) AddCarrier(c Carrier) {
	n.Carriers = append(n.Carriers, c)
}

func (n *Network) AddLoad(l Load) error {
	if err := n.attach(l.Name, l.Bus, l.PSet); err != nil {
		return err
	}
	n.Loads = append(n.Loads, l)
	return nil
}

// AddGenerator registers g. A nil PMaxPu means full availability.
func (n *Network) AddGenerator(g Generator) error {
	if g.PMaxPu == nil {
		g.PMaxPu = Constant(len(n.Snapshots), 1)
	}
	if err := n.attach(g.Name, g.Bus, g.PMaxPu); err != nil {
		return err
	}
	if g.PNomExtendable && g.PNomMin == 0 {
		g.PNomMin = g.PNom
	}
	if g.PNomMax == 0 {
		g.PNomMax = math.Inf(1)
	}
	n.Generators = append(n.Generators, g)
	return nil
}

func (n *Network) AddStorageUnit(s StorageUnit) error {
	if err := n.attach(s.Name, s.Bus, nil); err != nil {
		return err
	}
	if s.PNomExtendable && s.PNomMin == 0 {
		s.PNomMin = s.PNom
	}
	if s.PNomMax == 0 {
		s.PNomMax = math.Inf(1)
	}
	if s.EfficiencyDispatch == 0 {
		s.EfficiencyDispatch = 1
	}
	n.StorageUnits = append(n.StorageUnits, s)
	return nil
}

func (n *Network) attach(name, bus string, profile []float64) error {
	if !n.hasBus(bus) {
		return fmt.Errorf("%w: %q for %q", ErrUnknownBus, bus, name)
	}
	if profile != nil && len(profile) != len(n.Snapshots) {
		return fmt.Errorf("%w: %q has %d values for %d snapshots", ErrProfileLength, name, len(profile), len(n.Snapshots))
	}
	return n.claim(name)
}

// Validate checks that every component references a known bus.
func (n *Network) Validate() error {
	for _, g := range n.Generators {
		if !n.hasBus(g.Bus) {
			return fmt.Errorf("%w: generator %q", ErrUnknownBus, g.Name)
		}
	}
	for _, s := range n.StorageUnits {
		if !n.hasBus(s.Bus) {
			return fmt.Errorf("%w: storage unit %q", ErrUnknownBus, s.Name)
		}
	}
	for _, l := range n.Loads {
		if !n.hasBus(l.Bus) {
			return fmt.Errorf("%w: load %q", ErrUnknownBus, l.Name)
		}
	}
	return nil
}

// Demand returns the total load at snapshot t.
func (n *Network) Demand(t int) float64 {
	d := 0.0
	for _, l := range n.Loads {
		d += l.PSet[t]
	}
	return d
}

// AssetNames returns generator names followed by storage unit names.
func (n *Network) AssetNames() []string {
	names := make([]string, 0, len(n.Generators)+len(n.StorageUnits))
	for _, g := range n.Generators {
		names = append(names, g.Name)
	}
	for _, s := range n.StorageUnits {
		names = append(names, s.Name)
	}
	return names
}
