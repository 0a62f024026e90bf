package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{StatePending, StateConfirmed, StateReserved, StateCompleted, StateCancelled}

func TestFindEdge_OnlyLifecycleEdgesExist(t *testing.T) {
	allowed := map[[2]State]bool{
		{StatePending, StateConfirmed}:   true,
		{StatePending, StateCancelled}:   true,
		{StateConfirmed, StateCancelled}: true,
		{StateConfirmed, StateReserved}:  true,
		{StateReserved, StateCompleted}:  true,
	}
	for _, from := range allStates {
		for _, to := range allStates {
			_, ok := FindEdge(from, to)
			assert.Equal(t, allowed[[2]State{from, to}], ok, "%s -> %s", from, to)
		}
	}
}

func TestEdge_SystemOnly(t *testing.T) {
	e, ok := FindEdge(StateConfirmed, StateReserved)
	require.True(t, ok)
	assert.True(t, e.SystemOnly())
	assert.False(t, e.Allows(ActorUser))
	assert.False(t, e.Allows(ActorOwner))

	e, ok = FindEdge(StateReserved, StateCompleted)
	require.True(t, ok)
	assert.True(t, e.SystemOnly())

	e, ok = FindEdge(StatePending, StateConfirmed)
	require.True(t, ok)
	assert.False(t, e.SystemOnly())
	assert.True(t, e.Allows(ActorOwner))
	assert.False(t, e.Allows(ActorUser))
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, e := range Transitions() {
		assert.False(t, e.From.Terminal(), "edge leaves terminal state %s", e.From)
	}
}

func TestParseState(t *testing.T) {
	s, err := ParseState(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s)

	_, err = ParseState("archived")
	assert.Error(t, err)
}

func TestCombineInstant(t *testing.T) {
	got, err := CombineInstant("2024-01-01", "10:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = CombineInstant("2024-01-01", "10:00:30", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC), got)

	loc := time.FixedZone("PKT", 5*3600)
	got, err = CombineInstant("2024-01-01", "10:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), got.UTC())

	_, err = CombineInstant("01/01/2024", "10:00", time.UTC)
	assert.Error(t, err)
	_, err = CombineInstant("2024-01-01", "", time.UTC)
	assert.Error(t, err)
}

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC) }
	assert.True(t, Overlaps(at(10), at(12), at(11), at(13)))
	assert.False(t, Overlaps(at(10), at(12), at(12), at(13)))
	assert.True(t, Overlaps(at(10), at(14), at(11), at(12)))
}
