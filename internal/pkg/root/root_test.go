package root

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/msg"
	"github.com/ohowland/cgc_reserve/internal/pkg/network"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/ohowland/cgc_reserve/internal/pkg/results"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"gotest.tools/v3/assert"
)

func newSystem(t *testing.T) *System {
	t.Helper()
	s, err := New(optimize.Options{})
	assert.NilError(t, err)
	return s
}

func receive(t *testing.T, ch <-chan msg.Msg) msg.Msg {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return msg.Msg{}
}

func TestRunDefault(t *testing.T) {
	sys := newSystem(t)
	ch, err := sys.Publisher().Subscribe(uuid.New(), msg.RunCompleted)
	assert.NilError(t, err)

	run, err := sys.Run(context.Background(), settings.Default().WithReserve(5))
	assert.NilError(t, err)
	assert.Equal(t, run.Settings.Reserve, 5.0)
	assert.Equal(t, len(run.Report.Table.Rows), 48*(3*5+2))
	assert.Equal(t, len(run.Report.Prices), 48)

	for _, pr := range run.Report.Prices {
		assert.Assert(t, pr.Energy > 0)
	}
	_, reserves := run.Report.Table.Series(results.Reserve)
	for ti := 0; ti < 48; ti++ {
		total := 0.0
		for _, s := range reserves {
			total += s[ti]
		}
		assert.Assert(t, math.Abs(total-5) < 1e-6, "snapshot %d: %v", ti+1, total)
	}

	m := receive(t, ch)
	assert.Equal(t, m.PID(), sys.PID())
	assert.Equal(t, m.Payload().(Run).ID, run.ID)
}

func TestRunInfeasible(t *testing.T) {
	sys := newSystem(t)
	ch, err := sys.Publisher().Subscribe(uuid.New(), msg.RunFailed)
	assert.NilError(t, err)

	s := settings.Default().WithReserve(5)
	s.Generators = s.Generators[:3]
	_, err = sys.Run(context.Background(), s)
	assert.Assert(t, errors.Is(err, optimize.ErrInfeasible), "got %v", err)

	m := receive(t, ch)
	re := m.Payload().(RunError)
	assert.Assert(t, re.Err != "")
	assert.Equal(t, len(re.Settings.Generators), 3)
}

func TestRunCancelled(t *testing.T) {
	sys := newSystem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sys.Run(ctx, settings.Default())
	assert.Assert(t, errors.Is(err, context.Canceled))
}

func TestRunZeroReserveMeetsDemand(t *testing.T) {
	const tol = 1e-6
	sys := newSystem(t)
	s := settings.Default()
	assert.Equal(t, s.Horizon(), 48)
	run, err := sys.Run(context.Background(), s)
	assert.NilError(t, err)

	demand := network.DemandProfile(48, s.LoadMax)
	names, dispatch := run.Report.Table.Series(results.Dispatch)
	byName := make(map[string][]float64, len(names))
	for i, name := range names {
		byName[name] = dispatch[i]
	}
	for ti := 0; ti < 48; ti++ {
		supply := 0.0
		for _, series := range dispatch {
			supply += series[ti]
		}
		d := demand[ti]
		assert.Assert(t, math.Abs(supply-d) < tol, "snapshot %d: supply %v demand %v", ti+1, supply, d)

		// Merit order: 1 at cost 1, 2 at cost 2, 3 at cost 3, never 4.
		assert.Assert(t, math.Abs(byName["Dispatchable 1"][ti]-10) < tol, "snapshot %d", ti+1)
		assert.Assert(t, math.Abs(byName["Dispatchable 2"][ti]-math.Min(10, d-10)) < tol, "snapshot %d", ti+1)
		assert.Assert(t, math.Abs(byName["Dispatchable 3"][ti]-math.Max(0, d-20)) < tol, "snapshot %d", ti+1)
		assert.Assert(t, math.Abs(byName["Dispatchable 4"][ti]) < tol, "snapshot %d", ti+1)
	}

	var extended bool
	for _, st := range run.Report.Statistics {
		assert.Assert(t, st.CapacityFactor >= 0 && st.CapacityFactor <= 1+1e-9, "%s: %v", st.Asset, st.CapacityFactor)
		if st.Asset == "Dispatchable 4" {
			extended = true
			assert.Assert(t, math.Abs(st.OptimalCapacity) < tol, "p_nom_opt %v", st.OptimalCapacity)
		}
	}
	assert.Assert(t, extended)

	withReserve, err := sys.Run(context.Background(), s.WithReserve(5))
	assert.NilError(t, err)
	assert.Assert(t, withReserve.Report.Objective >= run.Report.Objective-tol,
		"R=5 %v, R=0 %v", withReserve.Report.Objective, run.Report.Objective)
}
