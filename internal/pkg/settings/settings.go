// Package settings holds the user-chosen parameters of one dashboard
// interaction and the session store that keeps them between interactions.
package settings

import (
	"fmt"
	"strings"
)

const (
	DefaultSnapshots = 48
	DefaultLoadMax   = 30

	// Slider ranges of the dashboard.
	MaxLoad      = 60
	MaxCapacity  = 60
	MaxCapCost   = 100
	// The dense simplex is sized for horizons up to a week.
	MaxSnapshots = 168
)

// Reserved asset names, used by the network builder.
const (
	VRESName    = "VRES"
	StorageName = "Storage"
)

// Generator is one row of the dispatchable generator table.
type Generator struct {
	Name         string  `json:"name" yaml:"name" bson:"name"`
	PNom         float64 `json:"p_nom" yaml:"p_nom" bson:"p_nom"`
	MarginalCost float64 `json:"marginal_cost" yaml:"marginal_cost" bson:"marginal_cost"`
	Extendable   bool    `json:"p_nom_extendable" yaml:"p_nom_extendable" bson:"p_nom_extendable"`
	CapitalCost  float64 `json:"capital_cost" yaml:"capital_cost" bson:"capital_cost"`
}

// Asset holds the capacity settings of the renewable generator or the
// storage unit.
type Asset struct {
	PNom        float64 `json:"p_nom" yaml:"p_nom" bson:"p_nom"`
	Extendable  bool    `json:"p_nom_extendable" yaml:"p_nom_extendable" bson:"p_nom_extendable"`
	CapitalCost float64 `json:"capital_cost" yaml:"capital_cost" bson:"capital_cost"`
}

// Settings is the immutable input of one solve.
type Settings struct {
	Generators []Generator `json:"dispatchable_generators" yaml:"dispatchable_generators" bson:"dispatchable_generators"`
	VRES       Asset       `json:"vres" yaml:"vres" bson:"vres"`
	Storage    Asset       `json:"storage" yaml:"storage" bson:"storage"`
	LoadMax    float64     `json:"load_max" yaml:"load_max" bson:"load_max"`
	Reserve    float64     `json:"reserve" yaml:"reserve" bson:"reserve"`
	Snapshots  int         `json:"snapshots" yaml:"snapshots" bson:"snapshots"`
}

// Default returns the dashboard's initial settings.
func Default() Settings {
	return Settings{
		Generators: []Generator{
			{Name: "Dispatchable 1", PNom: 10, MarginalCost: 1, CapitalCost: 60},
			{Name: "Dispatchable 2", PNom: 10, MarginalCost: 2, CapitalCost: 50},
			{Name: "Dispatchable 3", PNom: 10, MarginalCost: 3, CapitalCost: 40},
			{Name: "Dispatchable 4", PNom: 0, MarginalCost: 10, Extendable: true, CapitalCost: 30},
		},
		LoadMax:   DefaultLoadMax,
		Snapshots: DefaultSnapshots,
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	c := s
	c.Generators = make([]Generator, len(s.Generators))
	copy(c.Generators, s.Generators)
	return c
}

// WithReserve returns a copy with the reserve requirement set to r.
func (s Settings) WithReserve(r float64) Settings {
	c := s.Clone()
	c.Reserve = r
	return c
}

// Horizon returns the number of snapshots, falling back to the default.
func (s Settings) Horizon() int {
	if s.Snapshots <= 0 {
		return DefaultSnapshots
	}
	return s.Snapshots
}

// MaxReserve is the upper end of the reserve slider for the configured peak
// load.
func (s Settings) MaxReserve() float64 {
	return float64(int(0.5 * s.LoadMax))
}

// ValidationError lists every setting outside its allowed range.
type ValidationError struct {
	Problems []string
}

func (e ValidationError) Error() string {
	return "invalid settings: " + strings.Join(e.Problems, "; ")
}

// Validate checks s against the ranges offered by the dashboard controls.
// The model itself does not require it; malformed settings otherwise
// surface as solve failures.
func (s Settings) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Snapshots < 0 || s.Snapshots > MaxSnapshots {
		add("snapshots %d outside [0, %d], 0 selects %d", s.Snapshots, MaxSnapshots, DefaultSnapshots)
	}
	if s.LoadMax < 1 || s.LoadMax > MaxLoad {
		add("load_max %v outside [1, %d]", s.LoadMax, MaxLoad)
	}
	if s.Reserve < 0 || s.Reserve > s.MaxReserve() {
		add("reserve %v outside [0, %v]", s.Reserve, s.MaxReserve())
	}

	seen := map[string]bool{VRESName: true, StorageName: true}
	for i, g := range s.Generators {
		switch {
		case strings.TrimSpace(g.Name) == "":
			add("generator %d has no name", i)
		case seen[g.Name]:
			add("generator name %q is already used", g.Name)
		}
		seen[g.Name] = true
		if g.PNom < 0 {
			add("generator %q p_nom %v is negative", g.Name, g.PNom)
		}
		if g.CapitalCost < 0 {
			add("generator %q capital_cost %v is negative", g.Name, g.CapitalCost)
		}
	}

	assets := []struct {
		name string
		a    Asset
	}{{VRESName, s.VRES}, {StorageName, s.Storage}}
	for _, v := range assets {
		if v.a.PNom < 0 || v.a.PNom > MaxCapacity {
			add("%s p_nom %v outside [0, %d]", v.name, v.a.PNom, MaxCapacity)
		}
		if v.a.CapitalCost < 0 || v.a.CapitalCost > MaxCapCost {
			add("%s capital_cost %v outside [0, %d]", v.name, v.a.CapitalCost, MaxCapCost)
		}
	}

	if len(problems) > 0 {
		return ValidationError{Problems: problems}
	}
	return nil
}
