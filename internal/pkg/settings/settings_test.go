package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	assert.NilError(t, s.Validate())
	assert.Equal(t, len(s.Generators), 4)
	assert.Equal(t, s.Generators[3].Extendable, true)
	assert.Equal(t, s.Horizon(), 48)
	assert.Equal(t, s.MaxReserve(), 15.0)
}

func TestValidateCollectsProblems(t *testing.T) {
	s := Default()
	s.LoadMax = 0
	s.Reserve = -1
	s.Generators[1].Name = "VRES"
	s.Generators[2].PNom = -5
	s.Storage.PNom = 100

	err := s.Validate()
	var verr ValidationError
	assert.Assert(t, errors.As(err, &verr))
	assert.Equal(t, len(verr.Problems), 5, "%v", verr.Problems)
}

func TestValidateHorizon(t *testing.T) {
	s := Default()
	s.Snapshots = 0
	assert.NilError(t, s.Validate())
	assert.Equal(t, s.Horizon(), DefaultSnapshots)

	s.Snapshots = MaxSnapshots
	assert.NilError(t, s.Validate())

	for _, n := range []int{MaxSnapshots + 1, 8760, -1} {
		s.Snapshots = n
		err := s.Validate()
		var verr ValidationError
		assert.Assert(t, errors.As(err, &verr), "snapshots %d", n)
		assert.Equal(t, len(verr.Problems), 1)
		assert.ErrorContains(t, err, "0 selects 48")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := Default()
	c := s.WithReserve(5)
	c.Generators[0].PNom = 99

	assert.Equal(t, s.Reserve, 0.0)
	assert.Equal(t, c.Reserve, 5.0)
	assert.Equal(t, s.Generators[0].PNom, 10.0)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := uuid.New()

	_, err := store.Load(ctx, session)
	assert.Assert(t, errors.Is(err, ErrNotFound))

	s := Default().WithReserve(3)
	assert.NilError(t, store.Save(ctx, session, s))

	got, err := store.Load(ctx, session)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, s)

	got.Generators[0].Name = "changed"
	again, err := store.Load(ctx, session)
	assert.NilError(t, err)
	assert.Equal(t, again.Generators[0].Name, "Dispatchable 1")
}
