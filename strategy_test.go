package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyStateTransitions(t *testing.T) {
	none := StrategyState{Kind: StrategyNone}

	queued := none.Queue("a", 100)
	assert.Equal(t, StrategyState{Kind: StrategyPending, Target: "a", ReadyAt: 100}, queued)
	_, ok := queued.Current()
	assert.False(t, ok)

	_, err := queued.Activate("a", 99)
	assert.ErrorIs(t, err, ErrTooEarlyStrategyStartDate)
	_, err = queued.Activate("b", 100)
	assert.ErrorIs(t, err, ErrInvalidStrategyState)

	active, err := queued.Activate("a", 100)
	require.NoError(t, err)
	assert.Equal(t, StrategyState{Kind: StrategyActive, Target: "a"}, active)
	current, ok := active.Current()
	assert.True(t, ok)
	assert.Equal(t, "a", current)

	replacing := active.Queue("b", 200)
	current, ok = replacing.Current()
	assert.True(t, ok)
	assert.Equal(t, "a", current)
	assert.True(t, replacing.IsPending("b"))
	assert.False(t, replacing.IsPending("a"))

	retired := replacing.Retire()
	_, ok = retired.Current()
	assert.False(t, ok)
	assert.True(t, retired.IsPending("b"))

	assert.Equal(t, none, active.Retire())
}

func TestStrategyStateEmptyTarget(t *testing.T) {
	active := StrategyState{Kind: StrategyActive, Target: "a"}

	queued := active.Queue("", 50)
	next, err := queued.Activate("", 50)
	require.NoError(t, err)
	assert.Equal(t, StrategyNone, next.Kind)
}

func TestStrategyStateKindString(t *testing.T) {
	assert.Equal(t, "None", StrategyNone.String())
	assert.Equal(t, "Pending", StrategyPending.String())
	assert.Equal(t, "Active", StrategyActive.String())
	assert.Equal(t, "Unknown", StrategyStateKind(9).String())
}
