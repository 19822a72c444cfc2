package export

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRunsInOrder(t *testing.T) {
	var moves []string
	tr := NewTrigger(func(from, to State) { moves = append(moves, from.String()+">"+to.String()) })

	require.NoError(t, tr.Begin())
	assert.True(t, tr.Busy())
	assert.ErrorIs(t, tr.Begin(), ErrBusy)

	require.NoError(t, tr.Advance(StateNormalizing))
	require.NoError(t, tr.Advance(StateRasterizing))
	assert.Error(t, tr.Advance(StateNormalizing), "no going back")
	require.NoError(t, tr.Advance(StateSlicing))
	tr.Finish(nil)

	assert.False(t, tr.Busy())
	assert.Equal(t, []string{
		"idle>capturing", "capturing>normalizing", "normalizing>rasterizing",
		"rasterizing>slicing", "slicing>saved", "saved>idle",
	}, moves)
}

func TestTriggerFailureReturnsToIdle(t *testing.T) {
	tr := NewTrigger(nil)
	require.NoError(t, tr.Begin())
	tr.Finish(ErrZeroHeight)

	assert.Equal(t, StateIdle, tr.State())
	assert.Equal(t, []State{StateIdle, StateCapturing, StateFailed, StateIdle}, tr.History())
	require.NoError(t, tr.Begin())
}

func TestTriggerConcurrentBeginOnlyOneWins(t *testing.T) {
	tr := NewTrigger(nil)
	const callers = 32
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = tr.Begin()
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrBusy)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, []State{StateIdle, StateCapturing}, tr.History())
}

func TestTriggerFinishOnIdle(t *testing.T) {
	tr := NewTrigger(nil)
	tr.Finish(nil)
	assert.Equal(t, StateIdle, tr.State())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "rasterizing", StateRasterizing.String())
	text, err := StateSaved.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "saved", string(text))
	assert.Equal(t, "state(42)", State(42).String())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("pdf", nil, KindCapture))

	e := SerializationError("xlsx", ErrNoTarget)
	assert.Same(t, e, Classify("other", e, KindCapture))

	assert.Equal(t, KindPopupBlocked, Classify("print", ErrPopupBlocked, KindSerialization).Kind)
	assert.Equal(t, KindCapture, Classify("pdf", ErrDetached, KindCapture).Kind)
}
